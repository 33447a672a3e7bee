package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api/v1",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Response types matching backend

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Attributes struct {
	Str int `json:"str"`
	Dex int `json:"dex"`
	Int int `json:"int"`
}

func (a Attributes) Sum() int {
	return a.Str + a.Dex + a.Int
}

type Card struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"ownerId"`
	CardType   string     `json:"cardType"`
	Name       string     `json:"name"`
	Rarity     string     `json:"rarity"`
	Archetype  string     `json:"archetype"`
	Attributes Attributes `json:"attributes"`
}

type Battle struct {
	ID           string  `json:"id"`
	ChallengerID string  `json:"challengerId"`
	OpponentID   string  `json:"opponentId"`
	Status       string  `json:"status"`
	WinnerID     *string `json:"winnerId"`
	Explanation  *string `json:"explanation"`
}

type Result struct {
	WinnerID          *string `json:"winnerId"`
	Explanation       string  `json:"explanation"`
	TransferredCardID *string `json:"transferredCardId"`
	ScoreChallenger   int     `json:"scoreChallenger"`
	ScoreOpponent     int     `json:"scoreOpponent"`
	Policy            string  `json:"policy"`
}

type BattleView struct {
	Battle Battle  `json:"battle"`
	Result *Result `json:"result"`
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// RegisterUser creates a new user account
func (c *APIClient) RegisterUser(baseName string) (*User, string, error) {
	displayName := fmt.Sprintf("%s_%d", baseName, time.Now().UnixNano()%100000)

	body := map[string]string{
		"displayName": displayName,
		"password":    "testpassword123",
	}

	var result AuthResponse
	if err := c.do("POST", "/auth/register", body, "", http.StatusOK, &result); err != nil {
		return nil, "", fmt.Errorf("register: %w", err)
	}
	return &result.User, result.AccessToken, nil
}

// OpenPack grants the caller a fresh booster pack
func (c *APIClient) OpenPack(token string) ([]Card, error) {
	var cards []Card
	if err := c.do("POST", "/cards/packs", nil, token, http.StatusCreated, &cards); err != nil {
		return nil, fmt.Errorf("open pack: %w", err)
	}
	return cards, nil
}

func (c *APIClient) ListCards(token string) ([]Card, error) {
	var cards []Card
	if err := c.do("GET", "/cards", nil, token, http.StatusOK, &cards); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// Challenge creates a pending battle against opponentID
func (c *APIClient) Challenge(token, opponentID string) (*Battle, error) {
	var battle Battle
	err := c.do("POST", "/battles", map[string]string{"opponentId": opponentID}, token, http.StatusCreated, &battle)
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}
	return &battle, nil
}

func (c *APIClient) Accept(token, battleID string) (*Battle, error) {
	var battle Battle
	if err := c.do("POST", "/battles/"+battleID+"/accept", nil, token, http.StatusOK, &battle); err != nil {
		return nil, fmt.Errorf("accept: %w", err)
	}
	return &battle, nil
}

// SelectCard stakes cardID and reports whether both players have now chosen
func (c *APIClient) SelectCard(token, battleID, cardID string) (bool, error) {
	var result struct {
		CompletedPair bool `json:"completedPair"`
	}
	err := c.do("POST", "/battles/"+battleID+"/selection", map[string]string{"cardId": cardID}, token, http.StatusCreated, &result)
	if err != nil {
		return false, fmt.Errorf("select card: %w", err)
	}
	return result.CompletedPair, nil
}

// Resolve skips the rest of the reveal countdown
func (c *APIClient) Resolve(token, battleID string) (*Result, error) {
	var result Result
	if err := c.do("POST", "/battles/"+battleID+"/resolve", nil, token, http.StatusOK, &result); err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	return &result, nil
}

func (c *APIClient) GetBattle(token, battleID string) (*BattleView, error) {
	var view BattleView
	if err := c.do("GET", "/battles/"+battleID, nil, token, http.StatusOK, &view); err != nil {
		return nil, fmt.Errorf("get battle: %w", err)
	}
	return &view, nil
}

// Helper methods

func (c *APIClient) do(method, path string, body interface{}, token string, want int, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != want {
		var apiErr apiError
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Code != "" {
			return fmt.Errorf("status %d: %s (%s, retryable=%t)", resp.StatusCode, apiErr.Message, apiErr.Code, apiErr.Retryable)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(bodyBytes, out)
}
