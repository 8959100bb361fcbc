// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mdconvert/internal/httputil"
)

var submitCmd = &cobra.Command{
	Use:   "submit <file.pdf>",
	Short: "Send a PDF to a running mdconvert service",
	Long: `Submit uploads a PDF to POST /convert on a running service and prints the
returned Markdown. Busy responses (429, 502, 503, 504) are retried with
exponential backoff.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		output, _ := cmd.Flags().GetString("output")
		retries, _ := cmd.Flags().GetInt("retries")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		body, contentType, err := multipartUpload(args[0])
		if err != nil {
			return err
		}

		url := strings.TrimRight(serverURL, "/") + "/convert"
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)

		ctx := logger.WithContext(cmd.Context())
		resp, err := httputil.DoWithRetry(ctx, &http.Client{Timeout: timeout}, req, retries)
		if err != nil {
			return fmt.Errorf("posting to %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var e httputil.ErrorBody
			data, _ := io.ReadAll(resp.Body)
			if json.Unmarshal(data, &e) != nil || e.Error == "" {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", e.Error)
			for _, a := range e.Attempts {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %-10s %-20s %s\n", a.Strategy, a.Kind, a.Detail)
			}
			return fmt.Errorf("server returned %s", resp.Status)
		}

		var out struct {
			Markdown string `json:"markdown"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if output == "" {
			_, err := fmt.Fprint(cmd.OutOrStdout(), out.Markdown)
			return err
		}
		return os.WriteFile(output, []byte(out.Markdown), 0o644)
	},
}

// multipartUpload builds an in-memory multipart body so retries can replay it.
func multipartUpload(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading input: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("building upload: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func init() {
	submitCmd.Flags().String("server", "http://localhost:5000", "base URL of the mdconvert service")
	submitCmd.Flags().StringP("output", "o", "", "write Markdown to this file instead of stdout")
	submitCmd.Flags().Int("retries", 3, "maximum retries on busy responses")
	submitCmd.Flags().Duration("timeout", 20*time.Minute, "overall request timeout per attempt")

	rootCmd.AddCommand(submitCmd)
}
