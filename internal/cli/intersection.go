package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/interfold/pkg/types"
)

const excerptWidth = 48

func newIntersectionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "intersection",
		Aliases: []string{"ix"},
		Short:   "Manage intersections of atomic sets",
	}
	cmd.AddCommand(
		newIntersectionCreateCmd(a),
		newIntersectionGetCmd(a),
		newIntersectionFindCmd(a),
		newIntersectionListCmd(a),
		newIntersectionContentCmd(a),
		newIntersectionLifecycleCmd(a, "delete", "Soft-delete an intersection", types.IntersectionStore.SoftDelete),
		newIntersectionLifecycleCmd(a, "restore", "Restore a soft-deleted intersection", types.IntersectionStore.Restore),
		newIntersectionStatsCmd(a),
	)
	return cmd
}

func newIntersectionCreateCmd(a *app) *cobra.Command {
	var (
		content string
		extra   []string
	)
	cmd := &cobra.Command{
		Use:   "create <set> [set...]",
		Short: "Create an intersection; the sets are given in the order they were explored",
		Long: "Create an intersection of atomic sets. Sets are referenced by ID or name.\n" +
			"The positional sets form the creation path, in order. Sets passed with\n" +
			"--also are members that are not part of the path.",
		Args: minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				path, err := resolveSets(ctx, sc, args)
				if err != nil {
					return err
				}
				others, err := resolveSets(ctx, sc, extra)
				if err != nil {
					return err
				}
				in := types.CreateIntersectionInput{
					AtomicSetIDs:   append(append([]string{}, path...), others...),
					CreatedViaPath: path,
				}
				if cmd.Flags().Changed("content") {
					in.Content = &content
				}
				ix, err := sc.Intersections().Create(ctx, in)
				if err != nil {
					return err
				}
				return a.emit(cmd, ix, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Created intersection %s\n", ix.ID)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "note content")
	cmd.Flags().StringSliceVar(&extra, "also", nil, "additional member sets outside the creation path")
	return cmd
}

func newIntersectionGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an intersection with its atomic sets",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				ix, err := sc.Intersections().GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, ix, func(w io.Writer) error {
					fmt.Fprintf(w, "ID:          %s\n", ix.ID)
					printSetNames(w, ix.AtomicSets)
					fmt.Fprintf(w, "Deleted:     %t\n", ix.IsDeleted)
					fmt.Fprintf(w, "Created:     %s\n", stamp(ix.CreatedAt))
					fmt.Fprintf(w, "Updated:     %s\n", stamp(ix.UpdatedAt))
					if ix.Content != nil {
						fmt.Fprintf(w, "\n%s\n", *ix.Content)
					}
					return nil
				})
			})
		},
	}
}

func newIntersectionFindCmd(a *app) *cobra.Command {
	var exact bool
	cmd := &cobra.Command{
		Use:   "find <set> [set...]",
		Short: "Find active intersections containing all the given sets",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				ids, err := resolveSets(ctx, sc, args)
				if err != nil {
					return err
				}
				found, err := sc.Intersections().FindByAtomicSets(ctx, types.FindByAtomicSetsInput{
					AtomicSetIDs: ids,
					ExactMatch:   exact,
				})
				if err != nil {
					return err
				}
				return a.emit(cmd, found, intersectionTable(found))
			})
		},
	}
	cmd.Flags().BoolVar(&exact, "exact", false, "match intersections of exactly these sets")
	return cmd
}

func newIntersectionListCmd(a *app) *cobra.Command {
	var (
		all bool
		set string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List intersections, newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				var (
					list []types.Intersection
					err  error
				)
				if set != "" {
					var ids []string
					if ids, err = resolveSets(ctx, sc, []string{set}); err != nil {
						return err
					}
					list, err = sc.Intersections().ListByAtomicSet(ctx, ids[0])
				} else {
					list, err = sc.Intersections().List(ctx, all)
				}
				if err != nil {
					return err
				}
				return a.emit(cmd, list, intersectionTable(list))
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include soft-deleted intersections")
	cmd.Flags().StringVar(&set, "set", "", "only active intersections containing this set")
	return cmd
}

func newIntersectionContentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "content <id> <text>",
		Short: "Replace an intersection's content",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				ix, err := sc.Intersections().UpdateContent(ctx, types.UpdateIntersectionContentInput{
					ID:      args[0],
					Content: args[1],
				})
				if err != nil {
					return err
				}
				return a.emit(cmd, ix, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Updated intersection %s\n", ix.ID)
					return err
				})
			})
		},
	}
}

func newIntersectionLifecycleCmd(a *app, use, short string,
	op func(types.IntersectionStore, context.Context, string) (*types.Intersection, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				ix, err := op(sc.Intersections(), ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, ix, func(w io.Writer) error {
					state := "active"
					if ix.IsDeleted {
						state = "deleted"
					}
					_, err := fmt.Fprintf(w, "Intersection %s is %s\n", ix.ID, state)
					return err
				})
			})
		},
	}
}

func newIntersectionStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize intersections",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				st, err := sc.Intersections().Statistics(ctx)
				if err != nil {
					return err
				}
				return a.emit(cmd, st, func(w io.Writer) error {
					fmt.Fprintf(w, "Total:               %d\n", st.Total)
					fmt.Fprintf(w, "Active:              %d\n", st.Active)
					fmt.Fprintf(w, "Deleted:             %d\n", st.Deleted)
					fmt.Fprintf(w, "Avg sets per entry:  %.2f\n", st.AvgAtomicSetsPerIntersection)
					_, err := fmt.Fprintf(w, "Max path depth:      %d\n", st.MaxDepth)
					return err
				})
			})
		},
	}
}

func intersectionTable(list []types.Intersection) func(w io.Writer) error {
	return func(w io.Writer) error {
		if len(list) == 0 {
			_, err := fmt.Fprintln(w, "No intersections.")
			return err
		}
		return table(w, "ID\tDEPTH\tCREATED\tCONTENT", func(tw io.Writer) {
			for _, ix := range list {
				content := excerpt(ix.Content, excerptWidth)
				if ix.IsDeleted {
					content = "(deleted) " + content
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", ix.ID, len(ix.CreatedViaPath), ago(ix.CreatedAt), content)
			}
		})
	}
}
