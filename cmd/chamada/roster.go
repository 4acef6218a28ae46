package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chamada/internal/export"
	internalhttp "chamada/internal/http"
	"chamada/internal/jobs"
	"chamada/internal/state"
)

func (c *cli) roster(gradeID string) *state.Roster {
	return state.NewRoster(c.grades(), c.students(gradeID))
}

func (c *cli) loadRoster(ctx context.Context, gradeID string) (*state.Roster, error) {
	roster := c.roster(gradeID)
	if err := roster.Load(ctx); err != nil {
		return nil, err
	}
	if msg := roster.Err(); msg != "" {
		return nil, errors.New(msg)
	}
	return roster, nil
}

func printRoster(w io.Writer, view []state.RosterGrade) error {
	table := newTable(w, "TIME\tGRADE\tSTUDENT\tSTATUS")
	for _, entry := range view {
		if len(entry.Students) == 0 {
			fmt.Fprintf(table, "%s\t%s\t-\t-\n", entry.Grade.Time, entry.Grade.Name)
		}
		for _, student := range entry.Students {
			fmt.Fprintf(table, "%s\t%s\t%s\t%s\n", entry.Grade.Time, entry.Grade.Name, student.Name, statusLabel(student))
		}
	}
	return table.Flush()
}

func renderRoster(view []state.RosterGrade) (string, error) {
	var buf bytes.Buffer
	if err := printRoster(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *cli) exportCmd() *cobra.Command {
	var out, gradeID string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the roster of every class to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			roster, err := c.loadRoster(cmd.Context(), gradeID)
			if err != nil {
				return err
			}
			view := roster.View()
			if gradeID != "" {
				filtered := view[:0]
				for _, entry := range view {
					if entry.Grade.ID.String() == gradeID {
						filtered = append(filtered, entry)
					}
				}
				view = filtered
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			err = export.WriteRoster(f, view)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d classes)\n", out, len(view))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "chamada.xlsx", "destination workbook")
	cmd.Flags().StringVar(&gradeID, "grade", "", "export only this class")
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	var gradeID string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the roster in sync and print it whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := c.app.logger
			roster, err := c.loadRoster(ctx, gradeID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			last, err := renderRoster(roster.View())
			if err != nil {
				return err
			}
			fmt.Fprint(out, last)

			grades, students := roster.Grades, roster.Students
			go func() {
				if err := grades.Watch(ctx, c.app.bus); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("grades watch stopped", zap.Error(err))
				}
			}()
			go func() {
				if err := students.Watch(ctx, c.app.bus); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("students watch stopped", zap.Error(err))
				}
			}()
			jobDone := jobs.StartRefreshJob(ctx, c.app.cfg, logger, grades, students)

			var httpServer *http.Server
			if addr := c.app.cfg.MetricsAddr; addr != "" {
				server := internalhttp.NewServer(c.app.registry,
					internalhttp.CollectionProbe("grades", grades.Collection),
					internalhttp.CollectionProbe("students", students.Collection),
				)
				httpServer = &http.Server{
					Addr:              addr,
					Handler:           server.Router(),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					logger.Info("ops http listening", zap.String("addr", addr))
					if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("ops http server error", zap.Error(err))
					}
				}()
			}

			interval := c.app.cfg.RefreshInterval
			if interval <= 0 {
				interval = 30 * time.Second
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
		loop:
			for {
				select {
				case <-ctx.Done():
					break loop
				case <-ticker.C:
					rendered, err := renderRoster(roster.View())
					if err != nil {
						return err
					}
					if rendered != last {
						last = rendered
						fmt.Fprintf(out, "\n%s\n%s", time.Now().Format("15:04:05"), rendered)
					}
				}
			}

			grades.Close()
			students.Close()
			<-jobDone
			if httpServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					logger.Warn("shutdown error", zap.Error(err))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&gradeID, "grade", "", "watch only this class")
	return cmd
}
