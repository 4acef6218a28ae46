package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chamada/internal/clients"
	"chamada/internal/model"
	"chamada/internal/state"
)

func (c *cli) occurrencesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "occurrences",
		Aliases: []string{"ocorrencias"},
		Short:   "Log notes and incidents against a student",
	}
	cmd.AddCommand(c.occurrencesListCmd(), c.occurrencesCreateCmd(), c.occurrencesUpdateCmd(), c.occurrencesDeleteCmd())
	return cmd
}

func (c *cli) occurrences(studentID string) *state.Occurrences {
	return state.NewOccurrences(c.app.api.Occurrences, model.ID(studentID), c.app.cfg.MaxUploadBytes, c.app.logger)
}

func (c *cli) occurrencesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list STUDENT_ID",
		Short: "List the occurrences of a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			occurrences := c.occurrences(args[0])
			if err := occurrences.FetchAll(cmd.Context()); err != nil {
				return err
			}
			snap := occurrences.Snapshot()
			if err := loadErr(snap); err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "ID\tDATE\tFILES\tOBSERVATION")
			for _, occurrence := range snap.Items {
				created := occurrence.CreatedAt
				fmt.Fprintf(table, "%s\t%s\t%d\t%s\n", occurrence.ID, formatDate(&created), len(occurrence.Files), occurrence.Observation)
			}
			return table.Flush()
		},
	}
}

func (c *cli) occurrencesCreateCmd() *cobra.Command {
	var text string
	var attach []string
	cmd := &cobra.Command{
		Use:   "create STUDENT_ID",
		Short: "Record an occurrence, optionally with attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attachments := make([]clients.UploadFile, 0, len(attach))
			for _, path := range attach {
				upload, err := clients.FileFromPath(path)
				if err != nil {
					return err
				}
				attachments = append(attachments, upload)
			}
			occurrence, err := c.occurrences(args[0]).Create(cmd.Context(), model.OccurrenceInput{Observation: text}, attachments...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded occurrence %s\n", occurrence.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "observation")
	cmd.Flags().StringArrayVar(&attach, "attach", nil, "file to attach (repeatable)")
	return cmd
}

func (c *cli) occurrencesUpdateCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "update OCCURRENCE_ID",
		Short: "Change the text of an occurrence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			occurrence, err := c.occurrences("").Update(cmd.Context(), model.ID(args[0]), model.OccurrenceInput{Observation: text})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated occurrence %s\n", occurrence.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "new observation")
	return cmd
}

func (c *cli) occurrencesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete OCCURRENCE_ID",
		Short: "Delete an occurrence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.occurrences("").Delete(cmd.Context(), model.ID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted occurrence %s\n", args[0])
			return nil
		},
	}
}
