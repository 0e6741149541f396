package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// SearchEvent mirrors the matchmaking topic's wire format
type SearchEvent struct {
	Type        string            `json:"type"`
	PlayerID    string            `json:"player_id"`
	Player      PlayerSnapshot    `json:"player"`
	GameMode    string            `json:"game_mode"`
	SessionType string            `json:"session_type"`
	SkillRating *SkillRating      `json:"skill_rating,omitempty"`
	Preferences SearchPreferences `json:"preferences"`
}

// PlayerSnapshot is the display data captured at join time
type PlayerSnapshot struct {
	DisplayName string `json:"display_name"`
	DiceSkin    string `json:"dice_skin,omitempty"`
}

// SkillRating holds a synthetic rating and games-played count
type SkillRating struct {
	Rating      int `json:"rating"`
	GamesPlayed int `json:"games_played"`
}

// SearchPreferences are the per-search knobs
type SearchPreferences struct {
	MaxWaitTimeMs  int64  `json:"max_wait_time_ms"`
	SkillTolerance string `json:"skill_tolerance"`
}

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
	"Ace", "Bolt", "Crash", "Dash", "Edge", "Flash", "Glitch", "Haze", "Ion", "Jade",
	"Knight", "Luna", "Mystic", "Neon", "Orion", "Pulse", "Quantum", "Rebel", "Spark", "Turbo",
}

var diceSkins = []string{"classic-white", "obsidian", "gold-trim", "neon-green", "ruby"}

var tolerances = []string{"strict", "balanced", "loose"}

func getPlayerName(idx int) string {
	prefixIdx := idx % len(playerPrefixes)
	suffix := idx/len(playerPrefixes) + 1
	return fmt.Sprintf("%s%d", playerPrefixes[prefixIdx], suffix)
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "matchmaking-events", "Kafka topic")
	gameMode := flag.String("mode", "classic", "Game mode to queue for")
	totalPlayers := flag.Int("players", 500, "Size of the synthetic player pool")
	eventsPerSecond := flag.Int("rate", 50, "Search events per second")
	rankedPercent := flag.Int("ranked", 30, "Percent of joins that are ranked sessions")
	leavePercent := flag.Int("leave", 10, "Percent of events that are leaves")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  🎲 Matchmaking Load Generator")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Game Mode:        %s\n", *gameMode)
	fmt.Printf("  Player Pool:      %d\n", *totalPlayers)
	fmt.Printf("  Events/sec:       %d\n", *eventsPerSecond)
	fmt.Printf("  Ranked:           %d%%\n", *rankedPercent)
	fmt.Printf("  Leaves:           %d%%\n", *leavePercent)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	// Send event helper
	sendEvent := func(event SearchEvent) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.PlayerID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	// sessionFor picks the session type for a join
	sessionFor := func() string {
		if rand.Intn(100) < *rankedPercent {
			return "ranked"
		}
		return "quick"
	}

	// joinEvent builds a synthetic join for one player index. Ratings
	// cluster around 1200 with a spread wide enough to exercise the
	// tolerance tiers.
	joinEvent := func(idx int) SearchEvent {
		return SearchEvent{
			Type:     "join",
			PlayerID: getPlayerName(idx),
			Player: PlayerSnapshot{
				DisplayName: getPlayerName(idx),
				DiceSkin:    diceSkins[idx%len(diceSkins)],
			},
			GameMode:    *gameMode,
			SessionType: sessionFor(),
			SkillRating: &SkillRating{
				Rating:      1200 + rand.Intn(601) - 300,
				GamesPlayed: rand.Intn(200),
			},
			Preferences: SearchPreferences{
				MaxWaitTimeMs:  int64(60000 + rand.Intn(240000)),
				SkillTolerance: tolerances[rand.Intn(len(tolerances))],
			},
		}
	}

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*eventsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var eventCount int64

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nShutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\n\nDuration reached, shutting down...")
				shutdown()
				return
			}

			idx := rand.Intn(*totalPlayers)
			if rand.Intn(100) < *leavePercent {
				sendEvent(SearchEvent{
					Type:        "leave",
					PlayerID:    getPlayerName(idx),
					GameMode:    *gameMode,
					SessionType: sessionFor(),
				})
			} else {
				sendEvent(joinEvent(idx))
			}
			atomic.AddInt64(&eventCount, 1)

		case <-statsTicker.C:
			events := atomic.LoadInt64(&eventCount)
			success := atomic.LoadInt64(&successCount)
			errors := atomic.LoadInt64(&errorCount)
			fmt.Printf("[%s] Events: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				events,
				success,
				errors,
			)
		}
	}
}
