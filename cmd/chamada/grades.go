package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chamada/internal/model"
	"chamada/internal/state"
)

func (c *cli) gradesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "grades",
		Aliases: []string{"turmas"},
		Short:   "Manage classes",
	}
	cmd.AddCommand(c.gradesListCmd(), c.gradesCreateCmd(), c.gradesUpdateCmd(), c.gradesDeleteCmd())
	return cmd
}

func (c *cli) grades() *state.Grades {
	return state.NewGrades(c.app.api.Grades, c.app.logger)
}

func (c *cli) gradesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List classes by start time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			grades := c.grades()
			if err := grades.FetchAll(cmd.Context()); err != nil {
				return err
			}
			if err := loadErr(grades.Snapshot()); err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "ID\tNAME\tTIME\tSTUDENTS")
			for _, grade := range grades.Sorted() {
				fmt.Fprintf(table, "%s\t%s\t%s\t%d\n", grade.ID, grade.Name, grade.Time, grade.StudentCount)
			}
			return table.Flush()
		},
	}
}

func (c *cli) gradesCreateCmd() *cobra.Command {
	var input model.GradeInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			grade, err := c.grades().Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created grade %s (%s %s)\n", grade.ID, grade.Name, grade.Time)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Name, "name", "", "class name")
	cmd.Flags().StringVar(&input.Time, "time", "", "start time, e.g. 7:30 or 13")
	return cmd
}

func (c *cli) gradesUpdateCmd() *cobra.Command {
	var name, at string
	cmd := &cobra.Command{
		Use:   "update GRADE_ID",
		Short: "Rename a class or change its start time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := model.ID(args[0])
			grades := c.grades()
			if err := grades.FetchAll(cmd.Context()); err != nil {
				return err
			}
			input := model.GradeInput{Name: name, Time: at}
			for _, grade := range grades.Items() {
				if grade.ID != id {
					continue
				}
				if input.Name == "" {
					input.Name = grade.Name
				}
				if input.Time == "" {
					input.Time = grade.Time
				}
			}
			grade, err := grades.Update(cmd.Context(), id, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated grade %s (%s %s)\n", grade.ID, grade.Name, grade.Time)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new class name")
	cmd.Flags().StringVar(&at, "time", "", "new start time")
	return cmd
}

func (c *cli) gradesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete GRADE_ID",
		Short: "Delete a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.grades().Delete(cmd.Context(), model.ID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted grade %s\n", args[0])
			return nil
		},
	}
}
