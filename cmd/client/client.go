package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	var (
		grpcAddr   = flag.String("grpc-addr", "localhost:8081", "gRPC health check address")
		httpAddr   = flag.String("http-addr", "http://localhost:8080", "HTTP API base url")
		team       = flag.String("team", "alpha", "team to create and increment")
		counters   = flag.Int("counters", 4, "number of counters in the team")
		workers    = flag.Int("workers", 8, "concurrent workers per counter")
		increments = flag.Int("increments", 100, "increments per worker")
	)
	flag.Parse()

	if err := waitServing(*grpcAddr, 10*time.Second); err != nil {
		log.Fatalf("service is not healthy: %s", err)
	}

	c := &client{baseURL: *httpAddr, http: &http.Client{Timeout: 5 * time.Second}}

	if err := c.post(fmt.Sprintf("/teams/%s", *team), nil); err != nil {
		fmt.Println("add team: ", err)
	}
	for i := 0; i < *counters; i++ {
		if err := c.post(fmt.Sprintf("/teams/%s/counters/c%d", *team, i), nil); err != nil {
			fmt.Println("add counter: ", err)
		}
	}

	begin := time.Now()
	wg := sync.WaitGroup{}
	for i := 0; i < *counters; i++ {
		for w := 0; w < *workers; w++ {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				for j := 0; j < *increments; j++ {
					if err := c.post(path, []byte("1")); err != nil {
						fmt.Println("error: ", err)
					}
				}
			}(fmt.Sprintf("/teams/%s/counters/c%d/increment", *team, i))
		}
	}
	wg.Wait()
	fmt.Println("took > ", time.Since(begin))

	var total struct {
		TotalSteps int64 `json:"totalSteps"`
	}
	if err := c.get(fmt.Sprintf("/teams/%s/total", *team), &total); err != nil {
		log.Fatalf("could not get total: %s", err)
	}
	fmt.Printf("team %s total steps: %d (expected increase of %d)\n", *team, total.TotalSteps, (*counters)*(*workers)*(*increments))
}

func waitServing(addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, addr, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: "stepcounter"})
	if err != nil {
		return err
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) post(path string, body []byte) error {
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

func (c *client) get(path string, result interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	b, _ := ioutil.ReadAll(resp.Body)
	return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
}
