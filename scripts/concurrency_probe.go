//go:build ignore
// +build ignore

// Manual concurrency probe for the add-book endpoint.
//
// Usage:
//
//	SERVER_ADDR=http://localhost:8080 USERNAME=alice1 PASSWORD=Password1 go run ./scripts/concurrency_probe.go
//
// What it does:
//  1. Logs in and fetches a CSRF token.
//  2. Fires N goroutines all posting the same book (same catalog id) with
//     different statuses simultaneously.
//  3. Fetches the library and verifies exactly one entry exists for the book,
//     i.e. concurrent add/update requests collapsed onto one row.
//
// Prerequisites: server running, user registered.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"os"
	"sync"
)

const defaultServerAddr = "http://localhost:8080"

const workers = 10

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}
	username := os.Getenv("USERNAME")
	password := os.Getenv("PASSWORD")
	if username == "" || password == "" {
		log.Fatal("USERNAME and PASSWORD are required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Fatal(err)
	}
	client := &http.Client{Jar: jar}

	if err := postJSON(client, serverAddr+"/login", "", map[string]any{
		"username": username,
		"password": password,
	}); err != nil {
		log.Fatalf("login failed: %v", err)
	}

	csrf, err := fetchCSRFToken(client, serverAddr)
	if err != nil {
		log.Fatalf("csrf token: %v", err)
	}

	statuses := []string{"wishlist", "currently_reading", "completed"}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := postJSON(client, serverAddr+"/add_book", csrf, map[string]any{
				"catalog_id": "probe-book",
				"title":      "Concurrency Probe",
				"author":     "The Prober",
				"status":     statuses[i%len(statuses)],
			})
			if err != nil {
				log.Printf("worker %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	resp, err := client.Get(serverAddr + "/my_library_books")
	if err != nil {
		log.Fatalf("list library: %v", err)
	}
	defer resp.Body.Close()

	var library struct {
		Books []struct {
			CatalogID string `json:"catalog_id"`
		} `json:"books"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&library); err != nil {
		log.Fatalf("decode library: %v", err)
	}

	entries := 0
	for _, b := range library.Books {
		if b.CatalogID == "probe-book" {
			entries++
		}
	}
	fmt.Printf("library entries for probe-book: %d (want 1)\n", entries)
	if entries != 1 {
		os.Exit(1)
	}
}

func fetchCSRFToken(client *http.Client, serverAddr string) (string, error) {
	resp, err := client.Get(serverAddr + "/csrf-token")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var body struct {
		Token string `json:"csrf_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Token, nil
}

func postJSON(client *http.Client, url, csrf string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return nil
}
