package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/interfold/pkg/types"
)

func newSetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "set",
		Aliases: []string{"sets"},
		Short:   "Manage atomic sets",
	}
	cmd.AddCommand(
		newSetAddCmd(a),
		newSetListCmd(a),
		newSetGetCmd(a),
		newSetMetadataCmd(a),
	)
	return cmd
}

// parseMetadata decodes a JSON object flag value. An empty value gives nil.
func parseMetadata(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("%w: metadata must be a JSON object: %v", errUsage, err)
	}
	return m, nil
}

func newSetAddCmd(a *app) *cobra.Command {
	var metadata string
	cmd := &cobra.Command{
		Use:     "add <name>",
		Aliases: []string{"find-or-create"},
		Short:   "Find an atomic set by name, creating it when missing",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := parseMetadata(metadata)
			if err != nil {
				return err
			}
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				res, err := sc.AtomicSets().FindOrCreate(ctx, types.FindOrCreateAtomicSetInput{
					Name:     args[0],
					Metadata: meta,
				})
				if err != nil {
					return err
				}
				return a.emit(cmd, res, func(w io.Writer) error {
					verb := "Found"
					if res.WasCreated {
						verb = "Created"
					}
					_, err := fmt.Fprintf(w, "%s atomic set %s (%s)\n", verb, res.Name, res.ID)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&metadata, "metadata", "", "metadata as a JSON object, used only on creation")
	return cmd
}

func newSetListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List atomic sets by name",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				sets, err := sc.AtomicSets().GetAll(ctx)
				if err != nil {
					return err
				}
				return a.emit(cmd, sets, func(w io.Writer) error {
					if len(sets) == 0 {
						_, err := fmt.Fprintln(w, "No atomic sets.")
						return err
					}
					return table(w, "ID\tNAME\tCREATED", func(tw io.Writer) {
						for _, s := range sets {
							fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, ago(s.CreatedAt))
						}
					})
				})
			})
		},
	}
}

func newSetGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|name>",
		Short: "Show one atomic set",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				ids, err := resolveSets(ctx, sc, args)
				if err != nil {
					return err
				}
				set, err := sc.AtomicSets().GetByID(ctx, ids[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, set, func(w io.Writer) error {
					return printSet(w, set)
				})
			})
		},
	}
}

func newSetMetadataCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <id|name> [json]",
		Short: "Replace an atomic set's metadata; omit json to clear it",
		Args:  rangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 2 {
				raw = args[1]
			}
			meta, err := parseMetadata(raw)
			if err != nil {
				return err
			}
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				ids, err := resolveSets(ctx, sc, args[:1])
				if err != nil {
					return err
				}
				set, err := sc.AtomicSets().UpdateMetadata(ctx, ids[0], meta)
				if err != nil {
					return err
				}
				return a.emit(cmd, set, func(w io.Writer) error {
					return printSet(w, set)
				})
			})
		},
	}
}

func printSet(w io.Writer, s *types.AtomicSet) error {
	fmt.Fprintf(w, "ID:       %s\n", s.ID)
	fmt.Fprintf(w, "Name:     %s\n", s.Name)
	fmt.Fprintf(w, "Created:  %s\n", stamp(s.CreatedAt))
	if len(s.Metadata) == 0 {
		return nil
	}
	data, err := json.Marshal(s.Metadata)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Metadata: %s\n", data)
	return err
}
