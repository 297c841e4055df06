// 简易机器人客户端：连上服务器后自动建房/加入、准备，夜晚随机出牌，
// 投票阶段随机投票。只是演示与压测用的桩 AI，不属于核心规则契约。
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

const (
	msgTypeCreateRoom   = 101
	msgTypeJoinRoom     = 102
	msgTypeReady        = 104
	msgTypeSubmitAction = 201
	msgTypeSubmitVote   = 202
	msgTypePhaseChange  = 302
	msgTypeGameEvent    = 303
	msgTypePlayerView   = 304
)

type bot struct {
	conn     *websocket.Conn
	playerID string
	rng      *rand.Rand
}

// send formats and sends a message to the WebSocket server.
func (b *bot) send(msgID uint16, v interface{}) error {
	var data []byte
	if v != nil {
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return err
		}
	}
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return b.conn.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	join := flag.String("join", "", "room id to join, empty to create or auto-match")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	b := &bot{conn: c, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			b.handle(msgID, message[4:])
		}
	}()

	if *join != "" {
		b.send(msgTypeJoinRoom, map[string]string{"room_id": *join})
	} else {
		b.send(msgTypeJoinRoom, map[string]string{}) // auto-match first
	}

	select {
	case <-done:
	case <-interrupt:
		log.Println("Interrupt received, closing connection.")
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func (b *bot) handle(msgID uint16, data []byte) {
	switch msgID {
	case msgTypeCreateRoom, msgTypeJoinRoom:
		var resp struct {
			RoomID   string `json:"room_id"`
			PlayerID string `json:"player_id"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return
		}
		if resp.RoomID == "" {
			// auto-match failed, create a room instead
			b.send(msgTypeCreateRoom, map[string]string{"name": "bot room"})
			return
		}
		b.playerID = resp.PlayerID
		log.Printf("Joined room %s as %s", resp.RoomID, b.playerID)
		b.send(msgTypeReady, nil)

	case msgTypePhaseChange:
		var event struct {
			Payload map[string]interface{} `json:"payload"`
		}
		if err := json.Unmarshal(data, &event); err != nil {
			return
		}
		phase, _ := event.Payload["phase"].(string)
		log.Printf("Phase: %s", phase)
		switch phase {
		case "night", "voting":
			// 拿到自己的视图再决定出牌或投票
			b.send(msgTypePlayerView, nil)
		case "day":
			b.send(msgTypeReady, nil)
		}

	case msgTypeGameEvent:
		var event struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &event) == nil && event.Type != "" {
			log.Printf("Event: %s", event.Type)
		}

	case msgTypePlayerView:
		b.act(data)
	}
}

// act plays a random usable card at night or casts a random vote.
func (b *bot) act(data []byte) {
	var view struct {
		Phase   string `json:"phase"`
		Players []struct {
			ID    string `json:"id"`
			Alive bool   `json:"alive"`
		} `json:"players"`
		Hand []struct {
			ID   string `json:"id"`
			Type int    `json:"type"`
		} `json:"hand"`
		WitchKillerHolder bool `json:"witch_killer_holder"`
	}
	if err := json.Unmarshal(data, &view); err != nil {
		return
	}

	var targets []string
	for _, p := range view.Players {
		if p.Alive && p.ID != b.playerID {
			targets = append(targets, p.ID)
		}
	}
	if len(targets) == 0 {
		return
	}
	target := targets[b.rng.Intn(len(targets))]

	switch view.Phase {
	case "voting":
		b.send(msgTypeSubmitVote, map[string]string{"target_id": target})
		log.Printf("Voted for %s", target)

	case "night":
		if len(view.Hand) == 0 {
			return
		}
		// 女巫杀手持有者只能出女巫杀手；其余随机挑一张非查验牌
		const witchKillerType = 0
		const checkType = 4
		cardID := ""
		if view.WitchKillerHolder {
			for _, c := range view.Hand {
				if c.Type == witchKillerType {
					cardID = c.ID
					break
				}
			}
		} else {
			for _, i := range b.rng.Perm(len(view.Hand)) {
				if view.Hand[i].Type != checkType {
					cardID = view.Hand[i].ID
					break
				}
			}
		}
		if cardID == "" {
			return
		}
		b.send(msgTypeSubmitAction, map[string]string{"card_id": cardID, "target_id": target})
		log.Printf("Played card %s on %s", cardID, target)
	}
}
