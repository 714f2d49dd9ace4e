// fakenode emulates a camera node for bench-testing the coordinator
// without camera hardware. It acks every trigger at the shoot time with a
// made-up artifact name, and serves receive stats over HTTP.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type trigger struct {
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	Payload   string `json:"payload"`
}

type stats struct {
	Count        int64     `json:"count"`
	LastTriggers []trigger `json:"last_triggers"`
	Since        string    `json:"since"`
}

var (
	mu           sync.Mutex
	count        int64
	lastTriggers []trigger
	since        time.Time
	maxStored    = 50
)

func main() {
	since = time.Now().UTC()

	listenPort := intEnv("LISTEN_PORT", 5005)
	ackPort := intEnv("ACK_PORT", 5006)
	failEvery := intEnv("FAIL_EVERY", 0)

	addr := ":8081"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: listenPort})
	if err != nil {
		log.Fatalf("fakenode: bind %d: %v", listenPort, err)
	}

	go serveTriggers(conn, ackPort, failEvery)

	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count = 0
		lastTriggers = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("fakenode: triggers on :%d, acks to sender:%d, http on %s", listenPort, ackPort, addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func serveTriggers(conn *net.UDPConn, ackPort, failEvery int) {
	buf := make([]byte, 1024)
	for {
		n, sender, err := conn.ReadFromUDP(buf)
		if err != nil {
			log.Printf("fakenode: read: %v", err)
			continue
		}
		payload := string(buf[:n])

		mu.Lock()
		count++
		lastTriggers = append(lastTriggers, trigger{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Sender:    sender.String(),
			Payload:   payload,
		})
		if len(lastTriggers) > maxStored {
			lastTriggers = lastTriggers[len(lastTriggers)-maxStored:]
		}
		current := count
		mu.Unlock()

		log.Printf("fakenode: trigger #%d from %s: %q", current, sender, payload)

		waitForShootTime(payload)

		ack := fmt.Sprintf("ok:fake_%d.jpg", current)
		if failEvery > 0 && current%int64(failEvery) == 0 {
			ack = "fail:simulated failure"
		}
		ackAddr := &net.UDPAddr{IP: sender.IP, Port: ackPort}
		if _, err := conn.WriteToUDP([]byte(ack), ackAddr); err != nil {
			log.Printf("fakenode: ack to %s: %v", ackAddr, err)
		}
	}
}

// waitForShootTime sleeps until the shoot time when the trigger carries one.
func waitForShootTime(payload string) {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) < 2 {
		return
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return
	}
	target := time.Unix(0, int64(seconds*float64(time.Second)))
	if d := time.Until(target); d > 0 {
		time.Sleep(d)
	}
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Count:        count,
		LastTriggers: lastTriggers,
		Since:        since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

func intEnv(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
