// dealcart-cli is the operator's console client for the edge gateway.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	gatewayURL string
	metricsURL string
)

func main() {
	root := &cobra.Command{
		Use:           "dealcart-cli",
		Short:         "Talk to a running DealCart deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&gatewayURL, "gateway", "http://localhost:8080", "edge gateway base URL")

	root.AddCommand(searchCmd(), quoteCmd(), checkoutCmd(), metricsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// streamSSE prints each data frame of an SSE response as one line.
func streamSSE(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			fmt.Printf("[%s] ", strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			fmt.Println(strings.TrimPrefix(line, "data: "))
		}
	}
	return scanner.Err()
}

func prettyJSON(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		// Not JSON; print as-is.
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Stream live quotes for a search query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := fmt.Sprintf("%s/api/search?q=%s", gatewayURL, url.QueryEscape(args[0]))
			resp, err := http.Get(u)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("gateway returned %s", resp.Status)
			}
			return streamSSE(resp.Body)
		},
	}
}

func quoteCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "quote <productId>",
		Short: "Fetch the best (or all) quotes for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := fmt.Sprintf("%s/api/quote?productId=%s&mode=%s",
				gatewayURL, url.QueryEscape(args[0]), url.QueryEscape(mode))
			resp, err := http.Get(u)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("gateway returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
			}
			return prettyJSON(resp.Body)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "best", "best or all")
	return cmd
}

func checkoutCmd() *cobra.Command {
	var file string
	var idempotencyKey string
	var follow bool
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Start a checkout from a JSON request (file or stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var body io.Reader = os.Stdin
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				body = f
			}

			req, err := http.NewRequest(http.MethodPost, gatewayURL+"/api/checkout", body)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if idempotencyKey != "" {
				req.Header.Set("Idempotency-Key", idempotencyKey)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("gateway returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
			}
			if err := prettyJSON(bytes.NewReader(raw)); err != nil {
				return err
			}
			if !follow {
				return nil
			}

			var ack struct {
				CheckoutID string `json:"checkoutId"`
			}
			if err := json.Unmarshal(raw, &ack); err != nil || ack.CheckoutID == "" {
				return fmt.Errorf("no checkout id in response")
			}
			fmt.Printf("--- following %s ---\n", ack.CheckoutID)
			stream, err := http.Get(fmt.Sprintf("%s/api/checkout/%s/stream", gatewayURL, ack.CheckoutID))
			if err != nil {
				return err
			}
			defer stream.Body.Close()
			return streamSSE(stream.Body)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON request file (default stdin)")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency-Key header value")
	cmd.Flags().BoolVar(&follow, "follow", false, "stream workflow status after starting")
	return cmd
}

func metricsCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Dump the pricing aggregator's JSON metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			for {
				resp, err := http.Get(metricsURL + "/metrics")
				if err != nil {
					return err
				}
				err = prettyJSON(resp.Body)
				resp.Body.Close()
				if err != nil {
					return err
				}
				if !watch {
					return nil
				}
				time.Sleep(time.Second)
			}
		},
	}
	cmd.Flags().StringVar(&metricsURL, "addr", "http://localhost:8001", "pricing metrics base URL")
	cmd.Flags().BoolVar(&watch, "watch", false, "poll once per second")
	return cmd
}
