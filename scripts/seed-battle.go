//go:build ignore

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"time"
)

const apiBase = "http://localhost:8080/api/v1"

type User struct {
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Token       string `json:"token"`
	UserID      string `json:"userId"`
}

type Battle struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type RegisterResponse struct {
	User struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"user"`
	AccessToken string `json:"accessToken"`
}

func call(method, path, token string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewBuffer(data)
	}

	req, _ := http.NewRequest(method, apiBase+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s failed (%d): %s", method, path, resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	return nil
}

func registerUser(displayName, password string) (*User, error) {
	var result RegisterResponse
	err := call("POST", "/auth/register", "", map[string]string{
		"displayName": displayName,
		"password":    password,
	}, &result)
	if err != nil {
		return nil, err
	}

	return &User{
		DisplayName: result.User.DisplayName,
		Password:    password,
		Token:       result.AccessToken,
		UserID:      result.User.ID,
	}, nil
}

func generateUsername(role string) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	random := make([]byte, 4)
	for i := range random {
		random[i] = letters[rand.IntN(len(letters))]
	}
	return fmt.Sprintf("%s_%d_%s", role, time.Now().Unix(), string(random))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	fmt.Println("Seeding an accepted battle...")

	password := "testpassword123"

	challenger, err := registerUser(generateUsername("challenger"), password)
	if err != nil {
		fail("Failed to register challenger: %v", err)
	}
	opponent, err := registerUser(generateUsername("opponent"), password)
	if err != nil {
		fail("Failed to register opponent: %v", err)
	}
	fmt.Printf("  ✓ %s vs %s\n", challenger.DisplayName, opponent.DisplayName)

	for _, u := range []*User{challenger, opponent} {
		if err := call("POST", "/cards/packs", u.Token, nil, nil); err != nil {
			fail("Failed to open pack for %s: %v", u.DisplayName, err)
		}
	}
	fmt.Println("  ✓ Packs opened")

	var battle Battle
	if err := call("POST", "/battles", challenger.Token, map[string]string{"opponentId": opponent.UserID}, &battle); err != nil {
		fail("Failed to create challenge: %v", err)
	}
	if err := call("POST", "/battles/"+battle.ID+"/accept", opponent.Token, nil, &battle); err != nil {
		fail("Failed to accept challenge: %v", err)
	}
	fmt.Printf("  ✓ Battle %s is %s\n", battle.ID, battle.Status)

	fmt.Println("\n" + "============================================================")
	fmt.Println("BATTLE READY FOR CARD SELECTION")
	fmt.Println("============================================================")
	fmt.Println("\nLogin with either user (password: testpassword123):")
	fmt.Printf("  Challenger: %s\n", challenger.DisplayName)
	fmt.Printf("  Opponent:   %s\n", opponent.DisplayName)

	output := map[string]any{
		"battle": battle,
		"users":  []*User{challenger, opponent},
	}

	fmt.Println("\n" + "============================================================")
	fmt.Println("JSON OUTPUT (for scripts):")
	fmt.Println("============================================================")
	jsonOutput, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(jsonOutput))
}
