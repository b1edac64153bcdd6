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

// Package cli implements the alshival command.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alshival/alshival-go"
	"github.com/alshival/alshival-go/alshivalasync"
	"github.com/alshival/alshival-go/alshivalhttp"
)

// Options customizes the command for embedding and tests. Zero values use
// the process environment and the default HTTP sender.
type Options struct {
	Env    alshival.Environment
	Sender alshivalhttp.Sender
}

type globalFlags struct {
	configPath string
	envFile    string
}

// NewRoot constructs the root command and registers its subcommands.
func NewRoot(opts Options) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "alshival",
		Short:         "Send logs to Alshival resources and inspect client configuration",
		Version:       alshival.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML or JSON file of configuration keys applied after the environment")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "dotenv file to read instead of .env")

	root.AddCommand(newSendCommand(opts, flags))
	root.AddCommand(newParseCommand())
	root.AddCommand(newConfigCommand(opts, flags))
	root.AddCommand(newMCPCommand(opts, flags))
	return root
}

// newClient builds a synchronous client from the environment, the optional
// env file and the optional config file.
func newClient(opts Options, flags *globalFlags, extra ...alshival.ClientOption) (*alshival.Client, error) {
	env := opts.Env
	if env == nil {
		if path := strings.TrimSpace(flags.envFile); path != "" {
			loaded, err := alshival.DotEnvEnvironment(path)
			if err != nil {
				return nil, fmt.Errorf("read env file %q: %w", path, err)
			}
			env = loaded
		} else {
			env = alshival.DefaultEnvironment()
		}
	}

	clientOpts := []alshival.ClientOption{
		alshival.WithEnvironment(env),
		alshival.WithDispatcherOptions(alshivalasync.Synchronous()),
	}
	if opts.Sender != nil {
		clientOpts = append(clientOpts, alshival.WithSender(opts.Sender))
	}
	client := alshival.NewClient(append(clientOpts, extra...)...)

	if path := strings.TrimSpace(flags.configPath); path != "" {
		patch, err := alshival.LoadPatchFile(path)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		if err := client.Configure(patch); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("apply %q: %w", path, err)
		}
	}
	return client, nil
}
