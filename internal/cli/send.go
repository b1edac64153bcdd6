// Copyright 2025 Alshival
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/alshival/alshival-go"
	"github.com/alshival/alshival-go/alshivalhttp"
)

// observedSender records the outcome of the last request.
type observedSender struct {
	next alshivalhttp.Sender

	mu     sync.Mutex
	sent   bool
	url    string
	status int
	err    error
}

func (s *observedSender) Send(ctx context.Context, req alshivalhttp.Request) (alshivalhttp.Response, error) {
	resp, err := s.next.Send(ctx, req)
	s.mu.Lock()
	s.sent, s.url, s.status, s.err = true, req.URL, resp.StatusCode, err
	s.mu.Unlock()
	return resp, err
}

func newSendCommand(opts Options, flags *globalFlags) *cobra.Command {
	var (
		levelName  string
		loggerName string
		resource   string
		resourceID string
		extra      map[string]string
	)
	cmd := &cobra.Command{
		Use:   "send [flags] MESSAGE...",
		Short: "Forward one log record and wait for the collector's answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, err := alshival.CoerceLevel(levelName)
			if err != nil {
				return err
			}
			if !threshold.Enabled() {
				return fmt.Errorf("level %q disables logging", levelName)
			}
			level := threshold.Level()

			next := opts.Sender
			if next == nil {
				next = alshivalhttp.NewSender()
			}
			observed := &observedSender{next: next}
			client, err := newClient(Options{Env: opts.Env, Sender: observed}, flags)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if resource != "" {
				if err := client.Configure(alshival.Patch{Resource: alshival.String(resource)}); err != nil {
					return err
				}
			}

			decision := client.NewCloudHandler().Decide(client.Config(), alshival.Record{Level: level, ResourceID: resourceID})
			if !decision.Forward {
				return fmt.Errorf("record not forwarded: %s", decision.Reason)
			}

			fields := make(map[string]any, len(extra))
			for k, v := range extra {
				fields[k] = v
			}
			logger := client.Logger(loggerName, alshival.WithoutConsole())
			logger.Log(cmd.Context(), level, strings.Join(args, " "), alshival.CallOptions{
				ResourceID: resourceID,
				Extra:      fields,
			})
			if err := client.Close(); err != nil {
				return err
			}

			observed.mu.Lock()
			defer observed.mu.Unlock()
			switch {
			case !observed.sent:
				return errors.New("record was not sent")
			case observed.err != nil:
				return observed.err
			case observed.status < 200 || observed.status > 299:
				return fmt.Errorf("collector answered %d for %s", observed.status, observed.url)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "delivered %s record to %s (status %d)\n", strings.ToLower(level.String()), observed.url, observed.status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&levelName, "level", "l", "INFO", "record level (DEBUG, INFO, WARNING, ERROR, ALERT, CRITICAL or a number)")
	cmd.Flags().StringVar(&loggerName, "logger", "alshival.cli", "logger name reported with the record")
	cmd.Flags().StringVar(&resource, "resource", "", "resource URL overriding the configured destination")
	cmd.Flags().StringVar(&resourceID, "resource-id", "", "resource id for this record only")
	cmd.Flags().StringToStringVarP(&extra, "extra", "e", nil, "extra key=value fields")
	return cmd
}
