package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/vector"
)

func newResearchCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "research <topic>",
		Short: "Fetch, enrich and store news for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			defer cc.close()

			res, err := a.Research.Run(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			renderResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newFetchCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <topic>",
		Short: "Run the provider fallback chain without storing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			defer cc.close()

			out, err := a.Fetcher.FetchNews(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("%d articles via %s", len(out.Articles), out.Provider)))
			fmt.Fprintln(w)
			for i, art := range out.Articles {
				renderArticle(w, i+1, art)
			}
			return nil
		},
	}
}

func newTasksCommand(cc *commandContext) *cobra.Command {
	var skip, limit int
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List research tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			defer cc.close()

			tasks, err := a.Store.ListTasks(ctx, skip, limit)
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("No tasks yet."))
				return nil
			}
			renderTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().IntVar(&skip, "skip", 0, "Number of tasks to skip")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of tasks")
	return cmd
}

func newTaskCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "task <id>",
		Short: "Show a task and its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			defer cc.close()

			task, err := a.Store.GetTask(ctx, id)
			if err != nil {
				return err
			}
			if task == nil {
				return fmt.Errorf("task %d not found", id)
			}
			if cc.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), task)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Task %d · %s", task.ID, task.Topic)))
			fmt.Fprintln(w, statusStyle(task.Status).Render(string(task.Status))+dimStyle.Render(" "+task.CreatedAt.Local().Format("2006-01-02 15:04")))
			if len(task.Documents) > 0 {
				fmt.Fprintln(w)
				renderDocuments(w, task.Documents)
			}
			return nil
		},
	}
}

func newDeleteCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			defer cc.close()

			ok, err := a.Research.DeleteTask(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("task %d not found", id)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("Deleted task %d", id)))
			return nil
		},
	}
}

func newStatsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task and document totals with the most common topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			defer cc.close()

			s, err := a.Store.Stats(ctx)
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			renderStats(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newHistoryCommand(cc *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <query>",
		Short: "Search stored document summaries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			defer cc.close()

			docs, err := a.Store.SearchDocuments(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), docs)
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("No matching documents."))
				return nil
			}
			renderDocuments(cmd.OutOrStdout(), docs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of documents")
	return cmd
}

func newSimilarCommand(cc *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "similar <query>",
		Short: "Find stored documents similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			defer cc.close()

			matches, err := a.Vectors.Search(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if cc.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), matches)
			}
			renderMatches(cmd.OutOrStdout(), matches)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", vector.DefaultLimit, "Maximum number of matches")
	return cmd
}

func newDailyCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Run the scheduled research job once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			defer cc.close()

			s, err := a.Scheduler()
			if err != nil {
				return err
			}
			return s.RunOnce(ctx)
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}
