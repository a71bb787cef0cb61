package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// serverAddr is shared by every attempt subcommand; it targets a
// running `orc serve` instance (§6's Integration Surface).
var serverAddr string

func newAttemptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attempt",
		Short: "Manage task attempts against the Integration Surface",
		Long: `attempt is the CLI's reference client of the Integration Surface
(§6): every subcommand is a thin wrapper over the same HTTP verbs the
web UI uses against a running "orc serve" instance.`,
	}
	cmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "Integration Surface address")

	cmd.AddCommand(
		newAttemptCreateCmd(),
		newAttemptListCmd(),
		newAttemptDetailsCmd(),
		newAttemptChildrenCmd(),
		newAttemptLogsCmd(),
		newAttemptStateCmd(),
		newAttemptStopCmd(),
		newAttemptDiffCmd(),
		newAttemptRebaseCmd(),
		newAttemptMergeCmd(),
		newAttemptBranchStatusCmd(),
		newAttemptCreatePRCmd(),
		newAttemptFollowUpCmd(),
		newAttemptApprovePlanCmd(),
		newAttemptStartDevServerCmd(),
		newAttemptOpenEditorCmd(),
	)
	return cmd
}

func printData(data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func newAttemptCreateCmd() *cobra.Command {
	var executor, baseBranch string
	cmd := &cobra.Command{
		Use:   "create <project-id> <task-id>",
		Short: "Create a new attempt for a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.CreateAttempt(context.Background(), args[0], args[1], CreateAttemptRequest{
				Executor:   executor,
				BaseBranch: baseBranch,
			})
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
	cmd.Flags().StringVar(&executor, "executor", "coding-agent", "executor_type to launch")
	cmd.Flags().StringVar(&baseBranch, "base-branch", "", "base branch to provision the worktree from (defaults to the project's default)")
	return cmd
}

func newAttemptListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id> <task-id>",
		Short: "List attempts for a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.ListAttempts(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
}

func newAttemptDetailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "details <attempt-id>",
		Short: "Show attempt details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.GetAttemptDetails(context.Background(), args[0])
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
}

func newAttemptChildrenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "children <project-id> <task-id> <attempt-id>",
		Short: "List tasks spawned from an attempt's plan approvals",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.GetChildren(context.Background(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
}

func newAttemptLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <project-id> <task-id> <attempt-id>",
		Short: "Show the attempt's normalized log entries",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.GetLogs(context.Background(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
}

func newAttemptStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <project-id> <task-id> <attempt-id>",
		Short: "Show the attempt's current execution state",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.GetState(context.Background(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
}

func newAttemptStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <project-id> <task-id> <attempt-id>",
		Short: "Stop every running process for an attempt",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			if err := client.StopAll(context.Background(), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Println("stopped")
			return nil
		},
	}
}

func newAttemptDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <project-id> <task-id> <attempt-id>",
		Short: "Show the attempt's worktree diff against its base branch",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.Diff(context.Background(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
}

func newAttemptRebaseCmd() *cobra.Command {
	var newBase string
	cmd := &cobra.Command{
		Use:   "rebase <project-id> <task-id> <attempt-id>",
		Short: "Rebase the attempt's branch onto its base (or a new base)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			if err := client.Rebase(context.Background(), args[0], args[1], args[2], newBase); err != nil {
				return err
			}
			fmt.Println("rebased")
			return nil
		},
	}
	cmd.Flags().StringVar(&newBase, "new-base", "", "rebase onto this branch instead of the attempt's current base")
	return cmd
}

func newAttemptMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <project-id> <task-id> <attempt-id>",
		Short: "Merge the attempt's branch into its base branch",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.Merge(context.Background(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
}

func newAttemptBranchStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branch-status <project-id> <task-id> <attempt-id>",
		Short: "Show ahead/behind counts against the base branch",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.BranchStatus(context.Background(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
}

func newAttemptCreatePRCmd() *cobra.Command {
	var title, body string
	cmd := &cobra.Command{
		Use:   "create-pr <project-id> <task-id> <attempt-id>",
		Short: "Open a pull/merge request from the attempt's branch",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.CreatePR(context.Background(), args[0], args[1], args[2], title, body)
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "PR/MR title (required)")
	cmd.Flags().StringVar(&body, "body", "", "PR/MR description")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newAttemptFollowUpCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "follow-up <project-id> <task-id> <attempt-id>",
		Short: "Queue a follow-up prompt on an idle attempt",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.FollowUp(context.Background(), args[0], args[1], args[2], prompt)
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "follow-up instruction (required)")
	cmd.MarkFlagRequired("prompt")
	return cmd
}

func newAttemptApprovePlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve-plan <project-id> <task-id> <attempt-id>",
		Short: "Approve the attempt's latest plan and spawn a follow-on task",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			data, err := client.ApprovePlan(context.Background(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printData(data)
		},
	}
}

func newAttemptStartDevServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-dev-server <project-id> <task-id> <attempt-id>",
		Short: "Start the project's dev server against the attempt's worktree",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			if err := client.StartDevServer(context.Background(), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Println("dev server starting")
			return nil
		},
	}
}

func newAttemptOpenEditorCmd() *cobra.Command {
	var editorType string
	cmd := &cobra.Command{
		Use:   "open-editor <project-id> <task-id> <attempt-id>",
		Short: "Open the attempt's worktree in an editor",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(serverAddr)
			if err := client.OpenEditor(context.Background(), args[0], args[1], args[2], editorType); err != nil {
				return err
			}
			fmt.Println("editor opened")
			return nil
		},
	}
	cmd.Flags().StringVar(&editorType, "editor-type", "", "override the project's configured editor type")
	return cmd
}
