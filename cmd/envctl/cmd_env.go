package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcnelson/env-manager/internal/domain"
)

func newEnvCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "List and edit live environment variables",
	}
	cmd.AddCommand(
		newEnvListCmd(a),
		newEnvSetCmd(a),
		newEnvRmCmd(a),
		newEnvRenameCmd(a),
		newEnvPruneCmd(a),
	)
	return cmd
}

func newEnvListCmd(a *app) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List variables, system scope first",
		Args:    cobra.NoArgs,
	}
	cmd.Flags().StringVar(&scope, "scope", "", "only show one scope (user or system)")
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		var filter domain.Scope
		if scope != "" {
			s, err := domain.ParseScope(scope)
			if err != nil {
				return err
			}
			filter = s
		}

		vars := make([]domain.EnvironmentVariable, 0)
		for _, v := range a.sess.Snapshot().Variables {
			if filter == "" || v.Scope == filter {
				vars = append(vars, v)
			}
		}
		if a.out.json {
			return a.out.JSON(vars)
		}

		rows := make([][]string, 0, len(vars))
		for _, v := range vars {
			rows = append(rows, []string{string(v.Scope), v.Name, v.Value, v.Remark})
		}
		a.out.Table([]string{"SCOPE", "NAME", "VALUE", "REMARK"}, rows)
		if !a.sess.Gate().IsAdmin() {
			a.out.Muted("System variables are read-only: the server is not running as administrator.")
		}
		return nil
	})
	return cmd
}

func newEnvSetCmd(a *app) *cobra.Command {
	var scope, remark string
	cmd := &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Create or update a variable",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().StringVar(&scope, "scope", "user", "user or system")
	cmd.Flags().StringVar(&remark, "remark", "", "note stored alongside the variable")
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		s, err := domain.ParseScope(scope)
		if err != nil {
			return err
		}
		v := domain.EnvironmentVariable{Name: args[0], Value: args[1], Scope: s, Remark: remark}
		if err := a.sess.UpsertVariable(cmd.Context(), v); err != nil {
			return err
		}
		a.out.Success("Set %s (%s)", v.Name, v.Scope)
		return nil
	})
	return cmd
}

func newEnvRmCmd(a *app) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:     "rm NAME",
		Aliases: []string{"delete"},
		Short:   "Delete a variable",
		Args:    cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&scope, "scope", "user", "user or system")
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		s, err := domain.ParseScope(scope)
		if err != nil {
			return err
		}
		if err := a.sess.DeleteVariable(cmd.Context(), args[0], s); err != nil {
			return err
		}
		a.out.Success("Deleted %s (%s)", args[0], s)
		return nil
	})
	return cmd
}

func newEnvRenameCmd(a *app) *cobra.Command {
	var scope, toScope, value string
	cmd := &cobra.Command{
		Use:   "rename OLD NEW",
		Short: "Rename a variable or move it to another scope",
		Long: `Rename deletes the old variable and then writes the new one. If the
write fails after the delete, the old variable stays deleted and envctl exits
with status 7.`,
		Args: cobra.ExactArgs(2),
	}
	cmd.Flags().StringVar(&scope, "scope", "user", "scope of the existing variable")
	cmd.Flags().StringVar(&toScope, "to-scope", "", "scope of the new variable (default: unchanged)")
	cmd.Flags().StringVar(&value, "value", "", "new value (default: unchanged)")
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		from, err := domain.ParseScope(scope)
		if err != nil {
			return err
		}
		to := from
		if toScope != "" {
			if to, err = domain.ParseScope(toScope); err != nil {
				return err
			}
		}

		old, ok := findVariable(a.sess.Snapshot().Variables, args[0], from)
		if !ok {
			return fmt.Errorf("variable %s (%s): %w", args[0], from, domain.ErrNotFound)
		}
		updated := old
		updated.Name = args[1]
		updated.Scope = to
		if cmd.Flags().Changed("value") {
			updated.Value = value
		}

		if err := a.sess.ReplaceVariable(cmd.Context(), old, updated); err != nil {
			return err
		}
		a.out.Success("Renamed %s (%s) to %s (%s)", old.Name, old.Scope, updated.Name, updated.Scope)
		return nil
	})
	return cmd
}

func newEnvPruneCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop remarks of variables that no longer exist",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		n, err := a.sess.PruneRemarks(cmd.Context())
		if err != nil {
			return err
		}
		if a.out.json {
			return a.out.JSON(domain.PruneResponse{Pruned: n})
		}
		a.out.Success("Pruned %d remark(s)", n)
		return nil
	})
	return cmd
}

func findVariable(vars []domain.EnvironmentVariable, name string, scope domain.Scope) (domain.EnvironmentVariable, bool) {
	for _, v := range vars {
		if v.Name == name && v.Scope == scope {
			return v, true
		}
	}
	return domain.EnvironmentVariable{}, false
}
