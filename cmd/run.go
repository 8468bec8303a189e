// Copyright © 2026 The soundstream authors
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

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zekimust-a11y/soundstream-sub000/artwork"
	"github.com/zekimust-a11y/soundstream-sub000/bridge"
	"github.com/zekimust-a11y/soundstream-sub000/cast"
	"github.com/zekimust-a11y/soundstream-sub000/config"
	"github.com/zekimust-a11y/soundstream-sub000/lms"
	"github.com/zekimust-a11y/soundstream-sub000/log"
	"github.com/zekimust-a11y/soundstream-sub000/receiver"
	"github.com/zekimust-a11y/soundstream-sub000/storage"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:           "run",
	Short:         "Run the bridge between the music server and the cast device",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			outputError("%v", err)
			return err
		}
		if err := cfg.Validate(); err != nil {
			outputError("%v", err)
			return err
		}

		if cfg.Debug {
			log.SetLevel(log.DebugLevel)
		}
		log.UseConsoleOutput(os.Stderr, false)

		conn := cast.NewConnection()
		session := receiver.NewSession(conn, cfg.DeviceAddr,
			receiver.WithDevicePort(cfg.DevicePort),
			receiver.WithAppID(cfg.AppID),
			receiver.WithNamespace(cfg.Namespace),
		)

		source := lms.NewClient(cfg.LMSHost, cfg.LMSPort)

		store := storage.NewStorage("")
		images := artwork.NewFetcher(artwork.WithStore(store))

		b := bridge.New(session, source,
			bridge.WithImageSource(images),
			bridge.WithPollInterval(cfg.PollInterval),
			bridge.WithPauseTimeout(cfg.PauseTimeout),
			bridge.WithPreferredPlayer(cfg.Player),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.WithField("addr", cfg.DeviceAddr).
			WithField("lms", cfg.LMSHost).
			Info("starting bridge")
		if err := b.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.DeviceAddr = v
	}
	if v, _ := cmd.Flags().GetInt("port"); cmd.Flags().Changed("port") {
		cfg.DevicePort = v
	}
	if v, _ := cmd.Flags().GetString("lms-host"); v != "" {
		cfg.LMSHost = v
	}
	if v, _ := cmd.Flags().GetInt("lms-port"); cmd.Flags().Changed("lms-port") {
		cfg.LMSPort = v
	}
	if v, _ := cmd.Flags().GetString("player"); v != "" {
		cfg.Player = v
	}
	if v, _ := cmd.Flags().GetString("app-id"); v != "" {
		cfg.AppID = v
	}
	if v, _ := cmd.Flags().GetString("namespace"); v != "" {
		cfg.Namespace = v
	}
	if v, _ := cmd.Flags().GetDuration("poll-interval"); cmd.Flags().Changed("poll-interval") {
		cfg.PollInterval = v
	}
	if v, _ := cmd.Flags().GetDuration("pause-timeout"); cmd.Flags().Changed("pause-timeout") {
		cfg.PauseTimeout = v
	}
	if v, _ := cmd.Flags().GetBool("debug"); v {
		cfg.Debug = true
	}
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("addr", "a", "", "address of the chromecast device")
	runCmd.Flags().IntP("port", "p", 8009, "port of the chromecast device")
	runCmd.Flags().String("lms-host", "", "address of the logitech media server")
	runCmd.Flags().Int("lms-port", 9000, "http port of the logitech media server")
	runCmd.Flags().String("player", "", "preferred player id or name to follow")
	runCmd.Flags().String("app-id", "", "receiver application id to launch")
	runCmd.Flags().String("namespace", "", "receiver message namespace")
	runCmd.Flags().Duration("poll-interval", time.Second*2, "how often to poll the music server")
	runCmd.Flags().Duration("pause-timeout", time.Millisecond*5500, "how long a pause lasts before the receiver is stopped")
}
