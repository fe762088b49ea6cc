package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// CategoryComputers is the OpenTDB "Science: Computers" category.
const CategoryComputers = 18

// OpenTDBClient fetches questions from the Open Trivia DB (no API key).
type OpenTDBClient struct {
	baseURL    string
	category   int
	httpClient *http.Client
}

// NewOpenTDBClient builds a client; a zero category means CategoryComputers.
func NewOpenTDBClient(baseURL string, category int, httpClient *http.Client) *OpenTDBClient {
	if baseURL == "" {
		baseURL = "https://opentdb.com"
	}
	if category <= 0 {
		category = CategoryComputers
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &OpenTDBClient{
		baseURL:    baseURL,
		category:   category,
		httpClient: httpClient,
	}
}

type OpenTDBQuestion struct {
	Category        string   `json:"category"`
	Type            string   `json:"type"`
	Difficulty      string   `json:"difficulty"`
	Question        string   `json:"question"`
	CorrectAnswer   string   `json:"correct_answer"`
	IncorrectAnswer []string `json:"incorrect_answers"`
}

type openTDBResponse struct {
	ResponseCode int               `json:"response_code"`
	Results      []OpenTDBQuestion `json:"results"`
}

// Fetch requests multiple-choice questions; an empty difficulty means any.
func (c *OpenTDBClient) Fetch(ctx context.Context, amount int, difficulty string) ([]OpenTDBQuestion, error) {
	values := url.Values{}
	values.Set("amount", fmt.Sprint(amount))
	values.Set("category", fmt.Sprint(c.category))
	values.Set("type", "multiple")
	if difficulty != "" {
		values.Set("difficulty", difficulty)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api.php?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("opentdb non-200: %d", resp.StatusCode)
	}

	var payload openTDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.ResponseCode != 0 {
		return nil, fmt.Errorf("opentdb response code %d", payload.ResponseCode)
	}
	return payload.Results, nil
}
