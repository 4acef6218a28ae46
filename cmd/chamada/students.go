package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chamada/internal/model"
	"chamada/internal/state"
)

func (c *cli) studentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "students",
		Aliases: []string{"alunos"},
		Short:   "Manage the students of each class",
	}
	cmd.AddCommand(
		c.studentsListCmd(),
		c.studentsCreateCmd(),
		c.studentsUpdateCmd(),
		c.studentsDeleteCmd(),
		c.studentsIncludeCmd(),
		c.studentsTransferCmd(),
		c.studentsReorderCmd(),
		c.studentsPurgeCmd(),
	)
	return cmd
}

func (c *cli) students(gradeID string) *state.Students {
	return state.NewStudents(c.app.api.Students, model.ID(gradeID), c.app.bus, c.app.logger)
}

func (c *cli) studentsListCmd() *cobra.Command {
	var gradeID string
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List students, optionally of one class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			students := c.students(gradeID)
			if err := students.FetchAll(cmd.Context()); err != nil {
				return err
			}
			snap := students.Snapshot()
			if err := loadErr(snap); err != nil {
				return err
			}
			items := snap.Items
			if activeOnly {
				items = items[:0:0]
				for _, student := range snap.Items {
					if student.Status() == model.StudentActive {
						items = append(items, student)
					}
				}
			}
			return printStudents(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().StringVar(&gradeID, "grade", "", "class id")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "hide excluded and transferred students")
	return cmd
}

func (c *cli) studentsCreateCmd() *cobra.Command {
	var gradeID string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Enroll a student in a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			student, err := c.students(gradeID).Create(cmd.Context(), model.StudentInput{Name: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created student %s (%s)\n", student.ID, student.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&gradeID, "grade", "", "class id")
	_ = cmd.MarkFlagRequired("grade")
	return cmd
}

func (c *cli) studentsUpdateCmd() *cobra.Command {
	var name, gradeID string
	cmd := &cobra.Command{
		Use:   "update STUDENT_ID",
		Short: "Rename a student or move the record to another class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := model.ID(args[0])
			students := c.students("")
			if err := students.FetchAll(cmd.Context()); err != nil {
				return err
			}
			input := model.StudentInput{Name: name, GradeID: model.ID(gradeID)}
			if input.Name == "" {
				for _, student := range students.Items() {
					if student.ID == id {
						input.Name = student.Name
					}
				}
			}
			student, err := students.Update(cmd.Context(), id, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated student %s (%s, %s)\n", student.ID, student.Name, student.GradeName)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&gradeID, "grade", "", "new class id")
	return cmd
}

func (c *cli) studentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete STUDENT_ID",
		Short: "Exclude a student; the record is kept until purged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.students("").Delete(cmd.Context(), model.ID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "excluded student %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) studentsIncludeCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "include STUDENT_ID",
		Short: "Revert the exclusion of a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now()
			if date != "" {
				parsed, err := time.ParseInLocation("2006-01-02", date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
				}
				at = parsed
			}
			student, err := c.students("").Include(cmd.Context(), model.ID(args[0]), at)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "included student %s (%s)\n", student.ID, student.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "inclusion date, YYYY-MM-DD (default today)")
	return cmd
}

func (c *cli) studentsTransferCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "transfer STUDENT_ID",
		Short: "Move a student to another class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			student, err := c.students("").Transfer(cmd.Context(), model.ID(args[0]), model.ID(to))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "student %s %s\n", student.ID, statusLabel(student))
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destination class id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (c *cli) studentsReorderCmd() *cobra.Command {
	var gradeID string
	cmd := &cobra.Command{
		Use:   "reorder STUDENT_ID...",
		Short: "Set the roster order of a class",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			students := c.students(gradeID)
			if err := students.FetchAll(cmd.Context()); err != nil {
				return err
			}
			ids := make([]model.ID, len(args))
			for i, arg := range args {
				ids[i] = model.ID(arg)
			}
			if err := students.Reorder(cmd.Context(), model.ID(gradeID), ids); err != nil {
				return err
			}
			return printStudents(cmd.OutOrStdout(), students.Items())
		},
	}
	cmd.Flags().StringVar(&gradeID, "grade", "", "class id")
	_ = cmd.MarkFlagRequired("grade")
	return cmd
}

func (c *cli) studentsPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge STUDENT_ID...",
		Short: "Delete students permanently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]model.ID, len(args))
			for i, arg := range args {
				ids[i] = model.ID(arg)
			}
			if err := c.students("").DeletePermanently(cmd.Context(), ids); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d student(s)\n", len(ids))
			return nil
		},
	}
}
