package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aura-chat/aura/ai/knowledge"
	"github.com/aura-chat/aura/ai/llm"
	"github.com/aura-chat/aura/ai/media"
	"github.com/aura-chat/aura/ai/memory"
	"github.com/aura-chat/aura/ai/modality"
	"github.com/aura-chat/aura/ai/persona"
	"github.com/aura-chat/aura/ai/pipeline"
	"github.com/aura-chat/aura/internal/profile"
	"github.com/aura-chat/aura/internal/version"
	"github.com/aura-chat/aura/plugin/chat_apps/channels"
	"github.com/aura-chat/aura/plugin/chat_apps/channels/telegram"
	"github.com/aura-chat/aura/plugin/chat_apps/channels/whatsapp"
	"github.com/aura-chat/aura/plugin/chat_apps/metrics"
	"github.com/aura-chat/aura/server"
)

var rootCmd = &cobra.Command{
	Use:     "aura",
	Short:   `An AI companion that chats over Telegram, WhatsApp, and the web, remembers each conversation, and replies in text, voice, or images.`,
	Version: version.StringFull(),
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if !isRunningAsSystemdService() {
			// Load .env from the current directory; missing file is fine.
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:        viper.GetString("mode"),
			Addr:        viper.GetString("addr"),
			Port:        viper.GetInt("port"),
			Data:        viper.GetString("data"),
			Driver:      viper.GetString("driver"),
			DSN:         viper.GetString("dsn"),
			InstanceURL: viper.GetString("instance-url"),
			Version:     version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, cleanup, err := buildServer(ctx, instanceProfile)
		if err != nil {
			slog.Error("failed to build server", "error", err)
			return
		}
		defer cleanup()

		c := make(chan os.Signal, 1)
		// SIGTERM is the graceful shutdown signal used by most process
		// managers (systemd, Kubernetes).
		signal.Notify(c, terminationSignals...)

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		printGreetings(instanceProfile)

		if err := s.Start(ctx); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("failed to start server", "error", err)
				cancel()
			}
		}

		<-ctx.Done()
	},
}

// buildServer wires the memory store, providers, channels, and pipeline into
// the HTTP server. The returned cleanup closes the store.
func buildServer(ctx context.Context, instanceProfile *profile.Profile) (*server.Server, func(), error) {
	driver, err := newMemoryDriver(instanceProfile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open memory driver: %w", err)
	}

	store := memory.NewStore(driver, memory.Limits{
		MaxPreferences:     instanceProfile.MaxPreferences,
		MaxEmotionalTrends: instanceProfile.MaxEmotionalTrends,
		MaxTopicInterests:  instanceProfile.MaxTopicInterests,
		MaxFacts:           instanceProfile.MaxFacts,
		MaxHistory:         instanceProfile.MaxHistory,
		MaxShortTermTurns:  instanceProfile.MaxShortTermTurns,
	})
	cleanup := func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close memory store", "error", err)
		}
	}

	svc, err := llm.NewService(&llm.Config{
		Provider: instanceProfile.LLMProvider,
		Model:    instanceProfile.LLMModel,
		APIKey:   instanceProfile.LLMAPIKey,
		BaseURL:  instanceProfile.LLMBaseURL,
		Timeout:  instanceProfile.LLMTimeout,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create completion service: %w", err)
	}
	go svc.Warmup(ctx)

	var personaOpts []persona.Option
	if instanceProfile.PersonaText != "" || instanceProfile.BehaviorText != "" || instanceProfile.SafetyText != "" {
		personaOpts = append(personaOpts, persona.WithTexts(
			instanceProfile.PersonaText,
			instanceProfile.BehaviorText,
			instanceProfile.SafetyText,
		))
	}

	corpus, err := knowledge.LoadCorpus(instanceProfile.KnowledgeDir)
	if err != nil {
		slog.Warn("failed to load knowledge corpus, continuing without it", "dir", instanceProfile.KnowledgeDir, "error", err)
		corpus = nil
	}

	router := channels.NewChannelRouter()
	exporter := metrics.NewExporter(metrics.DefaultConfig())

	opts := pipeline.Options{
		Dispatcher: router,
		Metrics:    exporter,
		ModalityConfig: &modality.Config{
			VoiceProbability: instanceProfile.VoiceProbability,
			ImageProbability: instanceProfile.ImageProbability,
		},
	}

	mediaDir := ""
	if instanceProfile.IsTTSEnabled() || instanceProfile.IsImageEnabled() {
		mediaDir = filepath.Join(instanceProfile.Data, "media")
		artifacts, err := media.NewArtifactStore(mediaDir, instanceProfile.InstanceURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create media store: %w", err)
		}
		opts.Artifacts = artifacts
	}
	if instanceProfile.IsTTSEnabled() {
		opts.Speech = media.NewTTSClient(media.TTSConfig{
			Endpoint: instanceProfile.TTSEndpoint,
			APIKey:   instanceProfile.TTSAPIKey,
			Voice:    instanceProfile.TTSVoice,
		})
	}
	if instanceProfile.IsImageEnabled() {
		opts.Image = media.NewImageClient(media.ImageConfig{
			Endpoint: instanceProfile.ImageEndpoint,
			APIKey:   instanceProfile.ImageAPIKey,
			Model:    instanceProfile.ImageModel,
		})
	}

	pl := pipeline.New(store, svc, persona.NewProvider(personaOpts...), corpus, opts)

	if instanceProfile.IsTelegramEnabled() {
		tg, err := telegram.NewChannel(&telegram.Config{BotToken: instanceProfile.TelegramBotToken})
		if err != nil {
			slog.Error("failed to create telegram channel, continuing without it", "error", err)
		} else {
			router.Register(tg)
			registerTelegramWebhook(ctx, tg, instanceProfile)
		}
	}
	if instanceProfile.IsWhatsAppEnabled() {
		router.Register(whatsapp.NewChannel(whatsapp.Config{
			AccountSID: instanceProfile.TwilioAccountSID,
			AuthToken:  instanceProfile.TwilioAuthToken,
			FromNumber: instanceProfile.TwilioFromNumber,
		}))
	}

	return server.NewServer(instanceProfile, pl, router, exporter, mediaDir), cleanup, nil
}

func newMemoryDriver(instanceProfile *profile.Profile) (memory.Driver, error) {
	switch instanceProfile.Driver {
	case "sqlite":
		return memory.NewSQLiteDriver(instanceProfile.DSN)
	default:
		return memory.NewFileDriver(filepath.Join(instanceProfile.Data, "memory"))
	}
}

// registerTelegramWebhook points Telegram at this instance when a public URL
// is configured. Without one, updates must be forwarded by other means (e.g.
// a tunnel posting to /webhooks/telegram).
func registerTelegramWebhook(ctx context.Context, tg *telegram.Channel, instanceProfile *profile.Profile) {
	if instanceProfile.InstanceURL == "" {
		slog.Warn("telegram enabled but no instance url set, skipping webhook registration")
		return
	}
	handler := telegram.NewWebhookHandler(tg)
	url := strings.TrimRight(instanceProfile.InstanceURL, "/") + "/webhooks/telegram"
	if err := handler.SetWebhook(ctx, url, true); err != nil {
		slog.Error("failed to register telegram webhook", "url", url, "error", err)
		return
	}
	if info, err := handler.GetWebhookInfo(ctx); err == nil {
		slog.Info("telegram webhook registered", "url", info.URL, "pending_updates", info.PendingUpdateCount)
	}
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "file")
	viper.SetDefault("port", 28180)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28180, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "file", "memory persistence driver (file, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "memory database source name (sqlite driver only)")
	rootCmd.PersistentFlags().String("instance-url", "", "public url of this aura instance, used for webhooks and media links")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn", "instance-url"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("aura")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(instanceProfile *profile.Profile) {
	fmt.Printf("Aura %s started successfully!\n", version.String())

	if instanceProfile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Data directory: %s\n", instanceProfile.Data)
	fmt.Printf("Memory driver: %s\n", instanceProfile.Driver)
	fmt.Printf("Mode: %s\n", instanceProfile.Mode)

	if len(instanceProfile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", instanceProfile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", instanceProfile.Addr, instanceProfile.Port)
	}

	enabled := []string{"web"}
	if instanceProfile.IsTelegramEnabled() {
		enabled = append(enabled, "telegram")
	}
	if instanceProfile.IsWhatsAppEnabled() {
		enabled = append(enabled, "whatsapp")
	}
	fmt.Printf("Channels: %s\n", strings.Join(enabled, ", "))
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
