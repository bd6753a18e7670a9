package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	token := fs.String("token", os.Getenv("PEACECLAIMS_ADMIN_TOKEN"), "bearer token (or set PEACECLAIMS_ADMIN_TOKEN)")
	_ = fs.Parse(args)

	get(strings.TrimRight(strings.TrimSpace(*baseURL), "/")+"/admin/v1/state", *token)
}

func claimCmd(args []string) {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	token := fs.String("token", os.Getenv("PEACECLAIMS_ADMIN_TOKEN"), "bearer token (or set PEACECLAIMS_ADMIN_TOKEN)")
	world := fs.String("world", "world", "world name")
	x := fs.Int("x", 0, "block x")
	z := fs.Int("z", 0, "block z")
	_ = fs.Parse(args)

	q := url.Values{}
	q.Set("world", *world)
	q.Set("x", strconv.Itoa(*x))
	q.Set("z", strconv.Itoa(*z))
	get(strings.TrimRight(strings.TrimSpace(*baseURL), "/")+"/admin/v1/claims?"+q.Encode(), *token)
}

func get(u, token string) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
