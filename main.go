package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/techflowhq/support-agent/agent/agents"
	"github.com/techflowhq/support-agent/agent/agents/router"
	"github.com/techflowhq/support-agent/agent/directory"
	llmx "github.com/techflowhq/support-agent/agent/llm"
	"github.com/techflowhq/support-agent/agent/retrieval"
	"github.com/techflowhq/support-agent/agent/rules"
	statex "github.com/techflowhq/support-agent/agent/state"
	"github.com/techflowhq/support-agent/agent/statuslog"
	toolx "github.com/techflowhq/support-agent/agent/tool"
	configx "github.com/techflowhq/support-agent/pkg/config"
	_ "github.com/techflowhq/support-agent/pkg/logger/autoload"
	openrouterx "github.com/techflowhq/support-agent/pkg/openrouter"
)

type AppConfig struct {
	ResourcesDir  string `envconfig:"RESOURCES_DIR" split_words:"true" default:"resources"`
	CustomersFile string `envconfig:"CUSTOMERS_FILE" split_words:"true" default:"customers.csv"`
	RulesFile     string `envconfig:"RULES_FILE" split_words:"true" default:"retention_rules.json"`
	PolicyDocsDir string `envconfig:"POLICY_DOCS_DIR" split_words:"true" default:"policy_documents"`
	StatusLogFile string `envconfig:"STATUS_LOG_FILE" split_words:"true" default:"customer_status_log.txt"`
	SearchTopK    int    `envconfig:"SEARCH_TOP_K" split_words:"true" default:"3"`
}

func (c AppConfig) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ResourcesDir, name)
}

var rootCmd = &cobra.Command{
	Use:   "techflow-support",
	Short: "TechFlow Electronics phone insurance support agent",
	Long: `Conversational support for TechFlow phone insurance plans: cancellation,
retention offers, troubleshooting, and billing escalation.`,
	SilenceUsage: true,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive support session on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Replay the canned cancellation scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenarios(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(scenariosCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap wires the data layer and agents into a ready router. The
// retriever owns an in-memory index; callers must invoke close when done.
func bootstrap(ctx context.Context) (*router.Router, func(), error) {
	appCfg := configx.MustNew[AppConfig]("")
	llmConf := configx.MustNew[llmx.Config]("OPENROUTER")

	// Fail fast on a bad account instead of on the first customer message.
	if openrouterx.NewClient(llmConf.OpenRouterFor("")) == nil {
		return nil, nil, fmt.Errorf("openrouter credentials missing, set OPENROUTER_API_KEY")
	}

	dir, err := directory.Load(appCfg.path(appCfg.CustomersFile))
	if err != nil {
		return nil, nil, fmt.Errorf("load customer directory: %w", err)
	}
	ruleTable, err := rules.Load(appCfg.path(appCfg.RulesFile))
	if err != nil {
		return nil, nil, fmt.Errorf("load retention rules: %w", err)
	}
	index, err := retrieval.Build(appCfg.path(appCfg.PolicyDocsDir), appCfg.SearchTopK)
	if err != nil {
		return nil, nil, fmt.Errorf("build policy index: %w", err)
	}

	deps := toolx.Deps{
		Directory: dir,
		Rules:     ruleTable,
		Retriever: index,
		Status:    statuslog.NewFileSink(appCfg.path(appCfg.StatusLogFile)),
	}

	registry, err := agents.NewRegistry(ctx, *llmConf, deps)
	if err != nil {
		index.Close()
		return nil, nil, err
	}
	r, err := router.New(registry)
	if err != nil {
		index.Close()
		return nil, nil, err
	}

	log.Info().
		Int("customers", dir.Len()).
		Int("policy_docs", index.DocCount()).
		Msg("support agent ready")

	closeFn := func() {
		if err := index.Close(); err != nil {
			log.Warn().Err(err).Msg("close policy index")
		}
	}
	return r, closeFn, nil
}

func runChat(ctx context.Context) error {
	r, closeFn, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	store := statex.NewMemoryStore()
	sessionID := uuid.NewString()
	convo := statex.NewConversation(sessionID)
	if err := store.Save(ctx, convo); err != nil {
		return err
	}

	fmt.Println("TechFlow support. Type your message, or 'quit' to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	turns := 0

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}

		convo, err = store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		result, err := r.HandleTurn(ctx, convo, text)
		if err != nil {
			log.Error().Err(err).Str("session", sessionID).Msg("turn failed")
			fmt.Println("Sorry, something went wrong on our side. Please try again.")
			continue
		}
		if err := store.Save(ctx, convo); err != nil {
			return err
		}
		turns++

		fmt.Println(result.Reply)
		if result.Ended() {
			fmt.Println("(session closed)")
			break
		}
	}

	log.Info().Str("session", sessionID).Int("turns", turns).Msg("session finished")
	return scanner.Err()
}

type scenario struct {
	name     string
	messages []string
}

// The replay set mirrors the situations the routing rules were written
// against: retention saves, hard cancels, tech-only, and billing.
var cannedScenarios = []scenario{
	{
		name: "money problems",
		messages: []string{
			"hey can't afford the $13/month care+ anymore, need to cancel. I'm sarah.chen@email.com",
			"A payment pause sounds good, let's do that.",
		},
	},
	{
		name: "phone problems",
		messages: []string{
			"this phone keeps overheating, want to return it and cancel everything. I'm CUST_001",
			"No thanks, just cancel it.",
		},
	},
	{
		name: "questioning value",
		messages: []string{
			"paying for care+ but never used it, maybe just get rid of it?",
		},
	},
	{
		name: "technical help needed",
		messages: []string{
			"my phone won't charge anymore, tried different cables",
		},
	},
	{
		name: "billing question",
		messages: []string{
			"got charged $15.99 but thought care+ was $12.99, what's the extra? jennifer.lee@email.com",
		},
	},
}

func runScenarios(ctx context.Context) error {
	r, closeFn, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	for _, sc := range cannedScenarios {
		fmt.Printf("=== %s ===\n", sc.name)
		convo := statex.NewConversation(uuid.NewString())
		for _, msg := range sc.messages {
			fmt.Printf("customer: %s\n", msg)
			result, err := r.HandleTurn(ctx, convo, msg)
			if err != nil {
				log.Error().Err(err).Str("scenario", sc.name).Msg("scenario turn failed")
				break
			}
			fmt.Printf("agent:    %s\n", result.Reply)
			if result.Ended() {
				break
			}
		}
		fmt.Println()
	}
	return nil
}
