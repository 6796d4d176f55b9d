// Command chat is a terminal REPL against a running api server. Each line
// is sent to POST /api/answer and the answer is printed with its
// confidence and serving provider.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type answerRequest struct {
	Query string `json:"query"`
	Style string `json:"style,omitempty"`
}

type answerResponse struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Provider   string  `json:"provider"`
}

func main() {
	apiURL := flag.String("api", envOr("API_URL", "http://localhost:8080"), "api server base URL")
	style := flag.String("style", "chat", "prompt style: chat, skill_analyzer, career_advisor")
	flag.Parse()

	client := &http.Client{Timeout: 120 * time.Second}

	fmt.Println("dev-career-compass chat. Type a question, or /quit to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		resp, err := ask(client, *apiURL, line, *style)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		fmt.Printf("\n%s\n\n[%s, confidence %.2f]\n\n", resp.Answer, resp.Provider, resp.Confidence)
	}
}

func ask(client *http.Client, baseURL, query, style string) (*answerResponse, error) {
	body, err := json.Marshal(answerRequest{Query: query, Style: style})
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(baseURL+"/api/answer", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
