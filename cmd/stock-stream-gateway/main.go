// cmd/stock-stream-gateway/main.go
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"backoffice/internal/pkg/constants"
	"backoffice/internal/pkg/mq"
	invdomain "backoffice/internal/service/inventory/domain"
)

// stock-stream-gateway 把库存变动事件实时推给后台看板。
// 看板通过 WebSocket 连上来，可以只订阅关心的商品。

var (
	kafkaBrokers = getEnv("KAFKA_BROKERS", "localhost:9092")
	listenAddr   = getEnv("LISTEN_ADDR", ":8088")
	nodeID       = "stock-stream-" + uuid.New().String()[:8]
	upgrader     = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool { // 内部后台，允许所有来源
			return true
		},
	}
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Hub 维护所有活跃的连接，并负责消息广播
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan invdomain.StockChangedEvent
	lock       sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan invdomain.StockChangedEvent, 256),
	}
}

func (h *Hub) run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client] = true
			h.lock.Unlock()
			log.Printf("Client registered on node %s (filter: %v)", nodeID, client.products)
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.lock.Unlock()
			log.Printf("Client unregistered.")
		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.lock.RLock()
			for client := range h.clients {
				if !client.wants(event.ProductID) {
					continue
				}
				select {
				case client.send <- payload:
				default:
					// 慢客户端不拖慢整体广播，丢弃本条
				}
			}
			h.lock.RUnlock()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Client 是一个 WebSocket 连接的代表
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	products map[invdomain.ProductID]bool // 空表示订阅全部
}

func (c *Client) wants(productID invdomain.ProductID) bool {
	if len(c.products) == 0 {
		return true
	}
	return c.products[productID]
}

// writePump 把 send channel 中的消息写入 websocket，并定期发 ping。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 消费心跳和关闭帧，连接断开时从 Hub 注销。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	// products 参数可选："P1,P2" 表示只订阅这些商品的变动
	products := make(map[invdomain.ProductID]bool)
	if raw := r.URL.Query().Get("products"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				products[invdomain.ProductID(part)] = true
			}
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), products: products}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// consumeStockEvents 持续消费 stock-events 主题并交给 Hub 广播。
func consumeStockEvents(ctx context.Context, hub *Hub) error {
	reader := mq.NewKafkaReader(strings.Split(kafkaBrokers, ","), constants.StockEventsTopic, nodeID)
	defer reader.Close()

	log.Printf("Consuming stock events from topic '%s'...", constants.StockEventsTopic)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("ERROR: could not read stock event: %v. Retrying...", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var event invdomain.StockChangedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("ERROR: malformed stock event skipped: %v", err)
		} else {
			hub.broadcast <- event
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Printf("ERROR: failed to commit stock event offset: %v", err)
		}
	}
}

func main() {
	hub := newHub()

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return hub.run(ctx) })
	g.Go(func() error { return consumeStockEvents(ctx, hub) })
	g.Go(func() error {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			serveWs(hub, w, r)
		})
		log.Printf("Stock Stream Gateway (%s) started on %s", nodeID, listenAddr)
		return http.ListenAndServe(listenAddr, mux)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("stock stream gateway exited: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
