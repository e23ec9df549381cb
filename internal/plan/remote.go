package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// ErrPlanNotFound means the remote backend has no active plan for the user.
var ErrPlanNotFound = errors.New("plan not found")

// Client talks to the remote plan backend, the system of record for
// generated plans and completion snapshots. All responses come wrapped in a
// {success, message, data} envelope.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func kindPath(kind Kind) string {
	if kind == KindWorkout {
		return "/workout-plans"
	}
	return "/diet-plans"
}

func (c *Client) do(ctx context.Context, method, path, userID string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PLANFIT-USER", userID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response bytes: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrPlanNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("plan api status %d: %s", resp.StatusCode, respBytes)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(respBytes, &envelope); err != nil {
		return fmt.Errorf("unmarshal response envelope: %w", err)
	}
	if !envelope.Success {
		if envelope.Message == "" {
			envelope.Message = "unknown error"
		}
		return fmt.Errorf("plan api: %s", envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("unmarshal response data: %w", err)
		}
	}
	return nil
}

func (c *Client) CreateDietPlan(ctx context.Context, p *DietPlan) (*DietPlan, error) {
	created := &DietPlan{}
	if err := c.do(ctx, http.MethodPost, kindPath(KindDiet), p.UserID, p, created); err != nil {
		return nil, fmt.Errorf("create diet plan: %w", err)
	}
	return created, nil
}

func (c *Client) ActiveDietPlan(ctx context.Context, userID string) (*DietPlan, error) {
	p := &DietPlan{}
	if err := c.do(ctx, http.MethodGet, kindPath(KindDiet)+"/active", userID, nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Client) CreateWorkoutPlan(ctx context.Context, p *WorkoutPlan) (*WorkoutPlan, error) {
	created := &WorkoutPlan{}
	if err := c.do(ctx, http.MethodPost, kindPath(KindWorkout), p.UserID, p, created); err != nil {
		return nil, fmt.Errorf("create workout plan: %w", err)
	}
	return created, nil
}

func (c *Client) ActiveWorkoutPlan(ctx context.Context, userID string) (*WorkoutPlan, error) {
	p := &WorkoutPlan{}
	if err := c.do(ctx, http.MethodGet, kindPath(KindWorkout)+"/active", userID, nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

type planRef struct {
	ID string `json:"id"`
}

type listPlansResponse struct {
	Plans []planRef `json:"plans"`
	Total int       `json:"total"`
}

func (c *Client) ListPlanIDs(ctx context.Context, kind Kind, userID string, page, limit int) ([]string, int, error) {
	var listResp listPlansResponse
	path := fmt.Sprintf("%s?page=%d&limit=%d", kindPath(kind), page, limit)
	if err := c.do(ctx, http.MethodGet, path, userID, nil, &listResp); err != nil {
		return nil, 0, fmt.Errorf("list %s plans: %w", kind, err)
	}

	ids := make([]string, 0, len(listResp.Plans))
	for _, ref := range listResp.Plans {
		ids = append(ids, ref.ID)
	}
	return ids, listResp.Total, nil
}

func (c *Client) DeletePlan(ctx context.Context, kind Kind, userID, planID string) error {
	if err := c.do(ctx, http.MethodDelete, kindPath(kind)+"/"+planID, userID, nil, nil); err != nil {
		return fmt.Errorf("delete %s plan %s: %w", kind, planID, err)
	}
	return nil
}

// DeleteAllPlans purges the user's remote plans. Best effort: one failed
// delete is logged and does not stop the others.
func (c *Client) DeleteAllPlans(ctx context.Context, kind Kind, userID string) error {
	ids, _, err := c.ListPlanIDs(ctx, kind, userID, 1, 100)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := c.DeletePlan(ctx, kind, userID, id); err != nil {
			log.Errorf("purge %s plans for user %s: %s", kind, userID, err)
		}
	}
	return nil
}

type MealCompletionRequest struct {
	MealID     string `json:"mealId"`
	Date       string `json:"date"`
	DayNumber  int    `json:"dayNumber"`
	WeekNumber int    `json:"weekNumber"`
	MealType   string `json:"mealType"`
}

func (c *Client) CompleteMeal(ctx context.Context, userID string, req MealCompletionRequest) error {
	if err := c.do(ctx, http.MethodPost, kindPath(KindDiet)+"/meal/complete", userID, req, nil); err != nil {
		return fmt.Errorf("complete meal: %w", err)
	}
	return nil
}

type DayCompletionRequest struct {
	Date       string `json:"date"`
	DayNumber  int    `json:"dayNumber"`
	WeekNumber int    `json:"weekNumber"`
}

func (c *Client) CompleteDay(ctx context.Context, kind Kind, userID string, req DayCompletionRequest) error {
	if err := c.do(ctx, http.MethodPost, kindPath(kind)+"/day/complete", userID, req, nil); err != nil {
		return fmt.Errorf("complete %s day: %w", kind, err)
	}
	return nil
}

type WaterLogRequest struct {
	Date      string `json:"date"`
	IntakeMl  int    `json:"intakeMl"`
	Completed bool   `json:"completed"`
}

func (c *Client) LogWater(ctx context.Context, userID string, req WaterLogRequest) error {
	if err := c.do(ctx, http.MethodPost, kindPath(KindDiet)+"/water/log", userID, req, nil); err != nil {
		return fmt.Errorf("log water: %w", err)
	}
	return nil
}
