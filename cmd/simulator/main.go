package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/joho/godotenv"
)

// CarDetails mirrors the create-evaluation request body.
type CarDetails struct {
	Year        int     `json:"year"`
	Make        string  `json:"make"`
	Model       string  `json:"model"`
	Mileage     int     `json:"mileage"`
	Price       float64 `json:"price"`
	VIN         string  `json:"vin,omitempty"`
	Description string  `json:"description,omitempty"`
}

var carCatalog = map[string][]string{
	"Toyota":    {"Camry", "Corolla", "RAV4", "Highlander"},
	"Honda":     {"Civic", "Accord", "CR-V", "Pilot"},
	"Ford":      {"F-150", "Escape", "Explorer", "Mustang"},
	"Chevrolet": {"Silverado", "Equinox", "Malibu", "Tahoe"},
	"BMW":       {"3 Series", "5 Series", "X3", "X5"},
	"Tesla":     {"Model 3", "Model Y", "Model S"},
	"Nissan":    {"Altima", "Rogue", "Sentra"},
	"Subaru":    {"Outback", "Forester", "Impreza"},
}

var carMakes = []string{"Toyota", "Honda", "Ford", "Chevrolet", "BMW", "Tesla", "Nissan", "Subaru"}

// vinAlphabet excludes I, O and Q.
const vinAlphabet = "ABCDEFGHJKLMNPRSTUVWXYZ0123456789"

func randomVIN() string {
	b := make([]byte, 17)
	for i := range b {
		b[i] = vinAlphabet[rand.Intn(len(vinAlphabet))]
	}
	return string(b)
}

func randomCar() CarDetails {
	make := carMakes[rand.Intn(len(carMakes))]
	model := carCatalog[make][rand.Intn(len(carCatalog[make]))]
	year := time.Now().Year() - rand.Intn(12) // up to ~12 years old
	age := time.Now().Year() - year
	mileage := age*9000 + rand.Intn(15000)
	price := 34000.0 - float64(age)*2100 - float64(mileage)*0.03 + float64(rand.Intn(4000))
	if price < 1800 {
		price = 1800 + float64(rand.Intn(1200))
	}

	return CarDetails{
		Year:    year,
		Make:    make,
		Model:   model,
		Mileage: mileage,
		Price:   float64(int(price)),
		VIN:     randomVIN(),
	}
}

type apiClient struct {
	baseURL   string
	sessionID string
	http      *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) do(method, path string, payload interface{}) (map[string]interface{}, error) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.Header.Set("X-Session-Id", c.sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s failed with status %d", method, path, resp.StatusCode)
	}

	var result struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Data, nil
}

// runEvaluation drives one evaluation through the whole workflow as a
// guest: create, analyze, inspect all three sections, recommendations.
func (c *apiClient) runEvaluation() error {
	car := randomCar()

	data, err := c.do(http.MethodPost, "/api/evaluations", car)
	if err != nil {
		return fmt.Errorf("create evaluation: %w", err)
	}
	if sid, ok := data["session_id"].(string); ok && c.sessionID == "" {
		c.sessionID = sid
	}
	summary, _ := data["evaluation"].(map[string]interface{})
	id, _ := summary["id"].(string)
	if id == "" {
		return fmt.Errorf("no evaluation id in create response")
	}

	log.WithFields(log.Fields{
		"evaluation_id": id,
		"car":           fmt.Sprintf("%d %s %s", car.Year, car.Make, car.Model),
		"price":         car.Price,
	}).Info("Created evaluation")

	if _, err := c.do(http.MethodPost, "/api/evaluations/"+id+"/analyze", nil); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	inspections := []map[string]interface{}{
		{
			"inspection_type": "general",
			"notes":           "Walk-around done in daylight",
			"issues":          randomGeneralIssues(),
		},
		{
			"inspection_type": "mechanical",
			"results":         randomMechanicalResults(),
		},
		{
			"inspection_type":    "paperwork",
			"vin_match":          true,
			"title_status":       "clean",
			"ownership_verified": true,
		},
	}
	for _, insp := range inspections {
		if _, err := c.do(http.MethodPut, "/api/evaluations/"+id+"/inspection", insp); err != nil {
			return fmt.Errorf("inspection %v: %w", insp["inspection_type"], err)
		}
	}

	data, err = c.do(http.MethodPost, "/api/evaluations/"+id+"/recommendations", nil)
	if err != nil {
		return fmt.Errorf("recommendations: %w", err)
	}

	if eval, ok := data["evaluation"].(map[string]interface{}); ok {
		log.WithFields(log.Fields{
			"evaluation_id": id,
			"status":        eval["status"],
			"progress":      eval["progress"],
		}).Info("Completed evaluation")
	}

	return nil
}

func randomGeneralIssues() []string {
	pool := []string{
		"Curb rash on front wheels",
		"Small door ding on passenger side",
		"Windshield chip near wiper",
		"Worn driver seat bolster",
	}
	n := rand.Intn(3)
	return pool[:n]
}

func randomMechanicalResults() []map[string]interface{} {
	items := []struct {
		category string
		item     string
	}{
		{"engine", "No unusual noises at idle"},
		{"brakes", "Pad thickness"},
		{"suspension", "No clunks over bumps"},
		{"tires", "Tread depth"},
		{"electrical", "All lights functional"},
	}
	statuses := []string{"pass", "pass", "pass", "warning", "fail"}

	results := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		results = append(results, map[string]interface{}{
			"category": it.category,
			"item":     it.item,
			"status":   statuses[rand.Intn(len(statuses))],
		})
	}
	return results
}

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	count := 5
	if raw := os.Getenv("SIMULATOR_EVALUATIONS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			count = parsed
		}
	}

	client := newAPIClient(apiURL)
	log.WithFields(log.Fields{"api_url": apiURL, "count": count}).Info("Starting simulator")

	for i := 0; i < count; i++ {
		if err := client.runEvaluation(); err != nil {
			log.WithError(err).Error("Evaluation run failed")
		}
		time.Sleep(500 * time.Millisecond)
	}

	log.Info("Simulator finished")
}
