// Command seed generates a deterministic fixture of hourly rainfall readings
// for local development and integration testing. Output is one JSON reading
// per line, ready to pipe into the readings topic:
//
//	go run ./cmd/seed -locations mkt-atx-rain,mkt-dfw-rain -days 3 \
//	  | kcat -P -b localhost:9092 -t hourly-rainfall-readings
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
)

func main() {
	locations := flag.String("locations", "mkt-atx-rain", "comma-separated location ids")
	days := flag.Int("days", 3, "days of hourly readings per location")
	start := flag.String("start", "", "start time (RFC3339), defaults to now minus the duration")
	seed := flag.Int64("seed", 26, "rng seed")
	out := flag.String("out", "-", "output file, - for stdout")
	flag.Parse()

	if *days <= 0 {
		log.Fatal("days must be positive")
	}

	startTime := time.Now().UTC().Add(-time.Duration(*days) * 24 * time.Hour)
	if *start != "" {
		parsed, err := time.Parse(time.RFC3339, *start)
		if err != nil {
			log.Fatalf("invalid -start: %v", err)
		}
		startTime = parsed.UTC()
	}
	startTime = startTime.Truncate(time.Hour)

	w := os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	rng := rand.New(rand.NewSource(*seed))
	buf := bufio.NewWriter(w)
	defer buf.Flush()

	count := 0
	for _, loc := range strings.Split(*locations, ",") {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		for h := 0; h < *days*24; h++ {
			reading := domain.Reading{
				LocationID: loc,
				Timestamp:  startTime.Add(time.Duration(h) * time.Hour).Unix(),
				RainfallMM: rainfallFor(rng),
			}
			line, err := json.Marshal(reading)
			if err != nil {
				log.Fatalf("marshal reading: %v", err)
			}
			fmt.Fprintln(buf, string(line))
			count++
		}
	}

	fmt.Fprintf(os.Stderr, "wrote %d readings\n", count)
}

// rainfallFor draws an hour's rainfall: mostly dry, occasional showers, and
// a rare downpour so threshold crossings show up in seeded data.
func rainfallFor(rng *rand.Rand) int64 {
	switch roll := rng.Float64(); {
	case roll < 0.70:
		return 0
	case roll < 0.95:
		return int64(rng.Intn(8)) + 1
	default:
		return int64(rng.Intn(60)) + 20
	}
}
