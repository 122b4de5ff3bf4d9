package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"local-assistant/internal/bootstrap"
	"local-assistant/pkg/llm"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	chatSession string
	chatModel   string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the local model in the terminal",
	Long: `Starts an interactive chat. Messages are stored in the same database the
HTTP API uses.

Commands:
  /new [title]   start a new session
  /sessions      list sessions
  /use <id>      switch to a session
  /history       print the current session
  /quit          exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id to continue")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model file to load from the models directory")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	container, err := newContainer(cfg, false)
	if err != nil {
		return err
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if chatModel != "" {
		err = container.LLMService.Initialize(ctx, chatModel)
	} else {
		err = container.LLMService.RestoreLastModel(ctx)
	}
	if err != nil {
		return err
	}
	if container.LLMService.CurrentModel() == "" {
		return fmt.Errorf("no model loaded; pass --model <file> (see \"assistant models\")")
	}

	sessionID, err := openSession(ctx, container)
	if err != nil {
		return err
	}

	color.Cyan("Model %s, session %s. Type /quit to exit.", container.LLMService.CurrentModel(), sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		color.New(color.FgBlue, color.Bold).Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			next, quit, err := runCommand(ctx, container, sessionID, line)
			if err != nil {
				color.Red("%v", err)
			}
			if quit {
				return nil
			}
			sessionID = next
			continue
		}

		start := time.Now()
		reply, err := container.ChatService.SendMessage(ctx, sessionID, line)
		if err != nil {
			color.Red("%v", err)
			continue
		}

		color.Green("assistant> %s", reply.Message.Content)
		color.New(color.Faint).Printf("  %d tokens, %s\n", reply.Result.TokensGenerated, time.Since(start).Round(time.Millisecond))
	}
}

func openSession(ctx context.Context, c *bootstrap.Container) (string, error) {
	if chatSession != "" {
		s, err := c.SessionService.SetActiveSession(ctx, chatSession)
		if err != nil {
			return "", err
		}
		return s.Id, nil
	}

	s, err := c.SessionService.CreateSession(ctx, "Chat "+time.Now().Format("2006-01-02 15:04"))
	if err != nil {
		return "", err
	}
	if _, err := c.SessionService.SetActiveSession(ctx, s.Id); err != nil {
		return "", err
	}
	return s.Id, nil
}

func runCommand(ctx context.Context, c *bootstrap.Container, current, line string) (string, bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return current, true, nil

	case "/new":
		if arg == "" {
			arg = "Chat " + time.Now().Format("2006-01-02 15:04")
		}
		s, err := c.SessionService.CreateSession(ctx, arg)
		if err != nil {
			return current, false, err
		}
		if _, err := c.SessionService.SetActiveSession(ctx, s.Id); err != nil {
			return current, false, err
		}
		color.Cyan("Started session %s", s.Id)
		return s.Id, false, nil

	case "/sessions":
		list, err := c.SessionService.ListSessions(ctx)
		if err != nil {
			return current, false, err
		}
		for _, s := range list {
			marker := " "
			if s.Id == current {
				marker = "*"
			}
			fmt.Printf("%s %s  %-32s %s\n", marker, s.Id, s.Title, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return current, false, nil

	case "/use":
		s, err := c.SessionService.SetActiveSession(ctx, arg)
		if err != nil {
			return current, false, err
		}
		color.Cyan("Switched to %q (%d messages)", s.Title, len(s.Messages))
		return s.Id, false, nil

	case "/history":
		s, err := c.SessionService.GetSession(ctx, current)
		if err != nil {
			return current, false, err
		}
		for _, m := range s.Messages {
			label := color.New(color.Bold).Sprint(m.Role.Label())
			if m.Role == llm.RoleAssistant {
				label = color.GreenString(m.Role.Label())
			}
			fmt.Printf("%s: %s\n", label, m.Content)
		}
		return current, false, nil

	default:
		return current, false, fmt.Errorf("unknown command %s", name)
	}
}
