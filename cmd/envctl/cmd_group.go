package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bcnelson/env-manager/internal/domain"
)

const defaultHistoryLimit = 50

// groupFile is the YAML document read by import and written by export.
type groupFile struct {
	Groups []domain.Group `yaml:"groups"`
}

func newGroupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "group",
		Aliases: []string{"groups"},
		Short:   "Manage group presets and switch between them",
	}
	cmd.AddCommand(
		newGroupListCmd(a),
		newGroupShowCmd(a),
		newGroupRmCmd(a),
		newGroupSwitchCmd(a),
		newGroupPreviewCmd(a),
		newGroupImportCmd(a),
		newGroupExportCmd(a),
	)
	return cmd
}

func newGroupListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List groups and their default item",
		Args:    cobra.NoArgs,
	}
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		groups := a.sess.Snapshot().Groups
		if a.out.json {
			return a.out.JSON(groups)
		}

		rows := make([][]string, 0, len(groups))
		for i := range groups {
			def := ""
			if item, ok := groups[i].DefaultItem(); ok {
				def = item.Name
			}
			rows = append(rows, []string{groups[i].Name, strconv.Itoa(len(groups[i].Items)), def, groups[i].Remark})
		}
		a.out.Table([]string{"GROUP", "ITEMS", "DEFAULT", "REMARK"}, rows)
		return nil
	})
	return cmd
}

func newGroupShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show GROUP",
		Short: "Show the items and variables of a group",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		group, ok := a.sess.Group(args[0])
		if !ok {
			return fmt.Errorf("group %q: %w", args[0], domain.ErrNotFound)
		}
		if a.out.json {
			return a.out.JSON(group)
		}

		def, _ := group.DefaultItem()
		rows := make([][]string, 0)
		for _, item := range group.Items {
			marker := ""
			if def != nil && item.Name == def.Name {
				marker = "*"
			}
			if len(item.Variables) == 0 {
				rows = append(rows, []string{marker + item.Name, "", "", ""})
			}
			for _, v := range item.Variables {
				rows = append(rows, []string{marker + item.Name, string(v.Scope), v.Name, v.Value})
			}
		}
		a.out.Table([]string{"ITEM", "SCOPE", "NAME", "VALUE"}, rows)
		a.out.Muted("* marks the default item")
		return nil
	})
	return cmd
}

func newGroupRmCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm GROUP",
		Aliases: []string{"delete"},
		Short:   "Delete a group",
		Args:    cobra.ExactArgs(1),
	}
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		if err := a.sess.DeleteGroup(cmd.Context(), args[0]); err != nil {
			return err
		}
		a.out.Success("Deleted group %s", args[0])
		return nil
	})
	return cmd
}

func newGroupSwitchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "switch GROUP [ITEM]",
		Short: "Make an item of a group the live environment",
		Long: `Switch writes every variable of the item into the live environment.
Without ITEM the group's default item is used. Nothing is written when the
item holds a system variable and the server is not running as administrator.`,
		Args: cobra.RangeArgs(1, 2),
	}
	cmd.Flags().BoolVar(&a.record, "record", false, "switch through the server so the activation is recorded in history")
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		itemName := ""
		if len(args) == 2 {
			itemName = args[1]
		}
		applied, err := a.sess.Activate(cmd.Context(), args[0], itemName)
		if err != nil {
			return err
		}
		if a.out.json {
			return a.out.JSON(domain.ActivationResponse{Applied: applied})
		}
		a.out.Success("Switched %s: %d variable(s) written", args[0], len(applied))
		for _, v := range applied {
			a.out.Muted("  %s (%s) = %s", v.Name, v.Scope, v.Value)
		}
		return nil
	})
	return cmd
}

func newGroupPreviewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview GROUP [ITEM]",
		Short: "Show what switching to an item would change",
		Args:  cobra.RangeArgs(1, 2),
	}
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		itemName := ""
		if len(args) == 2 {
			itemName = args[1]
		} else if group, ok := a.sess.Group(args[0]); ok {
			if item, ok := group.DefaultItem(); ok {
				itemName = item.Name
			}
		}

		plan, err := a.sess.Preview(cmd.Context(), args[0], itemName)
		if err != nil {
			return err
		}
		if a.out.json {
			return a.out.JSON(plan)
		}

		rows := make([][]string, 0, len(plan.Changes))
		for _, c := range plan.Changes {
			allowed := "yes"
			if !c.Allowed {
				allowed = "no"
			}
			rows = append(rows, []string{c.Change, string(c.Scope), c.Name, c.Previous, c.Value, allowed})
		}
		a.out.Table([]string{"CHANGE", "SCOPE", "NAME", "FROM", "TO", "ALLOWED"}, rows)
		if plan.Forbidden {
			a.out.Warn("Switching to %s would be refused: it writes system variables.", plan.ItemName)
		}
		return nil
	})
	return cmd
}

func newGroupImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create or replace groups from a YAML file (- for stdin)",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		var file groupFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("%w: parsing %s: %v", domain.ErrInvalidInput, args[0], err)
		}
		if len(file.Groups) == 0 {
			return fmt.Errorf("%w: %s contains no groups", domain.ErrInvalidInput, args[0])
		}

		var errs []error
		for _, g := range file.Groups {
			saved, err := a.sess.SaveGroup(cmd.Context(), g)
			if err != nil {
				a.out.Error("%s: %v", g.Name, err)
				errs = append(errs, err)
				continue
			}
			a.out.Success("Imported %s (%d items)", saved.Name, len(saved.Items))
		}
		return errors.Join(errs...)
	})
	return cmd
}

func newGroupExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [GROUP...]",
		Short: "Write groups as YAML",
		Args:  cobra.ArbitraryArgs,
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		want := make(map[string]bool, len(args))
		for _, name := range args {
			want[name] = true
		}

		var file groupFile
		for _, g := range a.sess.Snapshot().Groups {
			if len(want) == 0 || want[g.Name] {
				file.Groups = append(file.Groups, g)
				delete(want, g.Name)
			}
		}
		if len(want) > 0 {
			missing := make([]string, 0, len(want))
			for name := range want {
				missing = append(missing, name)
			}
			sort.Strings(missing)
			return fmt.Errorf("groups %s: %w", strings.Join(missing, ", "), domain.ErrNotFound)
		}

		data, err := yaml.Marshal(file)
		if err != nil {
			return fmt.Errorf("encoding groups: %w", err)
		}
		if output == "" || output == "-" {
			_, err = a.stdout.Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return err
		}
		a.out.Success("Exported %d group(s) to %s", len(file.Groups), output)
		return nil
	})
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List activations recorded by the server",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	cmd.RunE = a.withSession(func(cmd *cobra.Command, args []string) error {
		history, err := a.sess.History(cmd.Context(), limit, offset)
		if err != nil {
			return err
		}
		if a.out.json {
			return a.out.JSON(history)
		}

		rows := make([][]string, 0, len(history))
		for _, h := range history {
			rows = append(rows, []string{
				h.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				h.GroupName, h.ItemName, h.Status, strconv.Itoa(h.AppliedCount), h.Error,
			})
		}
		a.out.Table([]string{"TIME", "GROUP", "ITEM", "STATUS", "APPLIED", "ERROR"}, rows)
		return nil
	})
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
