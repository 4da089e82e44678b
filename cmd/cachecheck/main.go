// Command cachecheck exercises the cached public read paths of a running
// server and confirms the Redis entries appear after the first request.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"ferryline/internal/shared/config"
	"ferryline/internal/shared/constants"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

type CacheCheckResult struct {
	Name         string        `json:"name"`
	Endpoint     string        `json:"endpoint"`
	Key          string        `json:"key"`
	MissTime     time.Duration `json:"miss_time"`
	HitTime      time.Duration `json:"hit_time"`
	KeyPopulated bool          `json:"key_populated"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
}

type CacheCheckSuite struct {
	BaseURL string
	Redis   *redis.Client
	HTTP    *http.Client
	Results []CacheCheckResult
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	baseURL := flag.String("base", fmt.Sprintf("http://localhost:%s/public", cfg.Port), "public adapter base URL")
	out := flag.String("out", "cache_check_results.json", "where to write the JSON report")
	flag.Parse()

	suite := &CacheCheckSuite{
		BaseURL: *baseURL,
		Redis: redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}),
		HTTP: &http.Client{Timeout: 30 * time.Second},
	}
	defer suite.Redis.Close()

	ctx := context.Background()
	if err := suite.Redis.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}
	fmt.Println("Redis connection: OK")

	scheduleID, err := suite.firstSchedule()
	if err != nil {
		log.Fatalf("Could not find a published schedule: %v", err)
	}
	fmt.Printf("Using schedule %s\n", scheduleID)

	checks := []struct {
		name     string
		endpoint string
		key      string
	}{
		{"Seat map", "/schedules/" + scheduleID + "/seat-map", constants.BuildSeatMapKey(scheduleID)},
		{"Sellable ticket types", "/schedules/" + scheduleID + "/ticket-types", constants.BuildTicketTypesKey(scheduleID)},
	}
	for _, c := range checks {
		fmt.Printf("\nChecking: %s\n", c.name)
		result := suite.check(ctx, c.name, c.endpoint, c.key)
		suite.Results = append(suite.Results, result)
	}

	if err := suite.writeReport(*out); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	for _, r := range suite.Results {
		if !r.Success || !r.KeyPopulated {
			os.Exit(1)
		}
	}
}

func (s *CacheCheckSuite) firstSchedule() (string, error) {
	body, _, err := s.get("/schedules?limit=1")
	if err != nil {
		return "", err
	}
	var envelope struct {
		Data struct {
			Schedules []struct {
				ID string `json:"id"`
			} `json:"schedules"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("failed to decode schedule list: %w", err)
	}
	if len(envelope.Data.Schedules) == 0 {
		return "", fmt.Errorf("no schedules listed; run the seeder first")
	}
	return envelope.Data.Schedules[0].ID, nil
}

// check drops the key, requests twice and confirms the first request
// repopulated it.
func (s *CacheCheckSuite) check(ctx context.Context, name, endpoint, key string) CacheCheckResult {
	result := CacheCheckResult{Name: name, Endpoint: endpoint, Key: key}

	if err := s.Redis.Del(ctx, key).Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	_, miss, err := s.get(endpoint)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.MissTime = miss
	result.KeyPopulated = s.Redis.Exists(ctx, key).Val() == 1

	_, hit, err := s.get(endpoint)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.HitTime = hit
	result.Success = true

	fmt.Printf("   miss %v, hit %v, key populated: %v\n", miss, hit, result.KeyPopulated)
	return result
}

func (s *CacheCheckSuite) get(endpoint string) ([]byte, time.Duration, error) {
	start := time.Now()
	resp, err := s.HTTP.Get(s.BaseURL + endpoint)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}
	if resp.StatusCode >= 400 {
		return body, elapsed, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return body, elapsed, nil
}

func (s *CacheCheckSuite) writeReport(path string) error {
	populated := 0
	for _, r := range s.Results {
		if r.KeyPopulated {
			populated++
		}
	}
	fmt.Printf("\nChecks: %d, keys populated: %d\n", len(s.Results), populated)

	data, err := json.MarshalIndent(map[string]interface{}{
		"summary": map[string]interface{}{
			"checks":         len(s.Results),
			"keys_populated": populated,
		},
		"results": s.Results,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("Detailed results saved to %s\n", path)
	return os.WriteFile(path, data, 0o644)
}
