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
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alshival/alshival-go"
)

type parsedResource struct {
	alshival.ResourceReference `yaml:",inline"`
	LogsURL                    string `yaml:"logs_url"`
}

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse URL",
		Short: "Print the resource a URL refers to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, ok := alshival.ParseResourceReference(args[0])
			if !ok {
				return fmt.Errorf("%q is not a resource URL", args[0])
			}
			return writeYAML(cmd.OutOrStdout(), parsedResource{ResourceReference: ref, LogsURL: ref.LogsURL()})
		},
	}
}

// configView is the printable form of alshival.Config.
type configView struct {
	Username              string  `yaml:"username"`
	ResourceOwnerUsername string  `yaml:"resource_owner_username,omitempty"`
	APIKey                string  `yaml:"api_key"`
	BaseURL               string  `yaml:"base_url"`
	PortalPrefix          string  `yaml:"portal_prefix"`
	ResourceID            string  `yaml:"resource_id"`
	Enabled               bool    `yaml:"enabled"`
	CloudLevel            string  `yaml:"cloud_level"`
	TimeoutSeconds        float64 `yaml:"timeout_seconds"`
	VerifySSL             bool    `yaml:"verify_ssl"`
	Debug                 bool    `yaml:"debug"`
	LogsEndpoint          string  `yaml:"logs_endpoint,omitempty"`
}

func newConfigView(cfg alshival.Config) configView {
	cfg = cfg.Redacted()
	view := configView{
		Username:              cfg.Username,
		ResourceOwnerUsername: cfg.ResourceOwnerUsername,
		APIKey:                cfg.APIKey,
		BaseURL:               cfg.BaseURL,
		PortalPrefix:          cfg.ResolvedPortalPrefix(),
		ResourceID:            cfg.ResourceID,
		Enabled:               cfg.Enabled,
		CloudLevel:            cfg.CloudLevel.String(),
		TimeoutSeconds:        cfg.Timeout.Seconds(),
		VerifySSL:             cfg.VerifySSL,
		Debug:                 cfg.Debug,
	}
	if cfg.ResourceID != "" {
		view.LogsEndpoint = cfg.LogsEndpoint(cfg.ResourceID)
	}
	return view
}

func newConfigCommand(opts Options, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with the API key redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(opts, flags)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()
			return writeYAML(cmd.OutOrStdout(), newConfigView(client.Config()))
		},
	}
}

func newMCPCommand(opts Options, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Print the MCP tool descriptor as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(opts, flags)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(client.MCPTool())
		},
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
