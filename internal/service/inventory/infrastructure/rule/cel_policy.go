// internal/service/inventory/infrastructure/rule/cel_policy.go
package rule

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"

	"backoffice/internal/service/inventory/domain"
)

// CelSelectionPolicy 用一条 CEL 表达式给候选仓库打分。
// 表达式对每个候选求值一次，必须返回数值，分数越高越优先；
// 同分时退回确定性顺序（可用量降序、仓库ID升序），保证整体排序仍是确定的。
//
// 表达式可用变量：
//
//	productId   string
//	warehouseId string
//	name        string
//	address     string
//	available   int
//
// 例如偏好华东仓："address.contains('上海') ? 100 : available"
type CelSelectionPolicy struct {
	program cel.Program
	expr    string
}

// NewCelSelectionPolicy 编译表达式。表达式来自配置中心，编译失败在启动期暴露。
func NewCelSelectionPolicy(expr string) (*CelSelectionPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("productId", cel.StringType),
		cel.Variable("warehouseId", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("address", cel.StringType),
		cel.Variable("available", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile allocation rule %q: %w", expr, issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build cel program: %w", err)
	}

	return &CelSelectionPolicy{program: program, expr: expr}, nil
}

func (p *CelSelectionPolicy) Rank(ctx context.Context, productID domain.ProductID, candidates []domain.Candidate) ([]domain.Candidate, error) {
	type scored struct {
		candidate domain.Candidate
		score     float64
	}

	scoredList := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		out, _, err := p.program.ContextEval(ctx, map[string]interface{}{
			"productId":   productID.String(),
			"warehouseId": c.Warehouse.ID.String(),
			"name":        c.Warehouse.Name,
			"address":     c.Warehouse.Address,
			"available":   c.Available,
		})
		if err != nil {
			return nil, fmt.Errorf("rule %q eval failed for warehouse %s: %w", p.expr, c.Warehouse.ID, err)
		}

		score, err := toFloat(out.Value())
		if err != nil {
			return nil, fmt.Errorf("rule %q returned non-numeric result for warehouse %s: %w", p.expr, c.Warehouse.ID, err)
		}
		scoredList = append(scoredList, scored{candidate: c, score: score})
	}

	sort.SliceStable(scoredList, func(i, j int) bool {
		if scoredList[i].score != scoredList[j].score {
			return scoredList[i].score > scoredList[j].score
		}
		if scoredList[i].candidate.Available != scoredList[j].candidate.Available {
			return scoredList[i].candidate.Available > scoredList[j].candidate.Available
		}
		return scoredList[i].candidate.Warehouse.ID < scoredList[j].candidate.Warehouse.ID
	})

	ranked := make([]domain.Candidate, len(scoredList))
	for i, s := range scoredList {
		ranked[i] = s.candidate
	}
	return ranked, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported result type %T", v)
	}
}
