package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/interfold/pkg/types"
)

func newOutlineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "outline",
		Aliases: []string{"ol"},
		Short:   "Edit the outline of notes",
	}
	cmd.AddCommand(
		newOutlineShowCmd(a),
		newOutlineGetCmd(a),
		newOutlinePathCmd(a),
		newOutlineAddCmd(a),
		newOutlineEditCmd(a),
		newOutlineMoveCmd(a),
		newOutlineNodeCmd(a, "indent", "Make a node the last child of its previous sibling", types.OutlineStore.IndentNode),
		newOutlineNodeCmd(a, "outdent", "Move a node out to follow its parent", types.OutlineStore.OutdentNode),
		newOutlineNodeCmd(a, "toggle", "Expand or collapse a node", types.OutlineStore.ToggleExpanded),
		newOutlineReorderCmd(a),
		newOutlineLinkCmd(a),
		newOutlineDeleteCmd(a),
	)
	return cmd
}

// optionalID returns nil for an unset flag.
func optionalID(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}

func newOutlineShowCmd(a *app) *cobra.Command {
	var all, flat bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the outline as an indented tree",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				if flat {
					nodes, err := sc.Outline().GetFlatOutline(ctx)
					if err != nil {
						return err
					}
					return a.emit(cmd, nodes, func(w io.Writer) error {
						return table(w, "ID\tPARENT\tORDER\tCONTENT", func(tw io.Writer) {
							for _, n := range nodes {
								parent := "-"
								if n.ParentID != nil {
									parent = *n.ParentID
								}
								fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", n.ID, parent, n.OrderIndex, excerpt(&n.Content, excerptWidth))
							}
						})
					})
				}

				roots, err := sc.Outline().GetUserOutline(ctx)
				if err != nil {
					return err
				}
				return a.emit(cmd, roots, func(w io.Writer) error {
					if len(roots) == 0 {
						_, err := fmt.Fprintln(w, "Outline is empty.")
						return err
					}
					printTree(w, roots, all)
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "show children of collapsed nodes")
	cmd.Flags().BoolVar(&flat, "flat", false, "list rows without nesting")
	return cmd
}

// printTree writes one line per node, indented by depth. Children of
// collapsed nodes are hidden unless all is set.
func printTree(w io.Writer, nodes []*types.OutlineTreeNode, all bool) {
	for _, n := range nodes {
		marker := "-"
		if len(n.Children) > 0 {
			marker = "▾"
			if !n.IsExpanded {
				marker = "▸"
			}
		}
		link := ""
		if n.IntersectionID != nil {
			link = " ⧉"
		}
		fmt.Fprintf(w, "%s%s %s%s  [%s]\n", strings.Repeat("  ", n.Depth), marker, n.Content, link, n.ID)
		if n.IsExpanded || all {
			printTree(w, n.Children, all)
		}
	}
}

func printNode(w io.Writer, n *types.OutlineNode) error {
	fmt.Fprintf(w, "ID:           %s\n", n.ID)
	if n.ParentID != nil {
		fmt.Fprintf(w, "Parent:       %s\n", *n.ParentID)
	}
	fmt.Fprintf(w, "Order:        %d\n", n.OrderIndex)
	fmt.Fprintf(w, "Expanded:     %t\n", n.IsExpanded)
	if n.IntersectionID != nil {
		fmt.Fprintf(w, "Intersection: %s\n", *n.IntersectionID)
	}
	fmt.Fprintf(w, "Updated:      %s\n", stamp(n.UpdatedAt))
	_, err := fmt.Fprintf(w, "\n%s\n", n.Content)
	return err
}

func newOutlineGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one outline node",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				n, err := sc.Outline().GetNodeByID(ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, n, func(w io.Writer) error { return printNode(w, n) })
			})
		},
	}
}

func newOutlinePathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path <id>",
		Short: "Print the nodes from the root down to a node",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				path, err := sc.Outline().GetNodePath(ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, path, func(w io.Writer) error {
					steps := make([]string, len(path))
					for i, p := range path {
						steps[i] = excerpt(&p.Content, excerptWidth)
					}
					_, err := fmt.Fprintln(w, strings.Join(steps, " › "))
					return err
				})
			})
		},
	}
}

func newOutlineAddCmd(a *app) *cobra.Command {
	var (
		parent, intersection string
		at                   int
	)
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a node, appended after its siblings unless --at is given",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := types.CreateOutlineNodeInput{
				ParentID:       optionalID(cmd, "parent", parent),
				Content:        args[0],
				IntersectionID: optionalID(cmd, "intersection", intersection),
			}
			if cmd.Flags().Changed("at") {
				in.OrderIndex = &at
			}
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				n, err := sc.Outline().CreateNode(ctx, in)
				if err != nil {
					return err
				}
				return a.emit(cmd, n, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Added node %s\n", n.ID)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent node ID (default: root level)")
	cmd.Flags().IntVar(&at, "at", 0, "explicit order index, stored as given")
	cmd.Flags().StringVar(&intersection, "intersection", "", "intersection the note was written against")
	return cmd
}

func newOutlineEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <content>",
		Short: "Replace a node's content",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				n, err := sc.Outline().UpdateNodeContent(ctx, types.UpdateNodeContentInput{
					ID:      args[0],
					Content: args[1],
				})
				if err != nil {
					return err
				}
				return a.emit(cmd, n, func(w io.Writer) error { return printNode(w, n) })
			})
		},
	}
}

func newOutlineMoveCmd(a *app) *cobra.Command {
	var (
		parent string
		at     int
	)
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a node under --parent, or to the root level without it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				n, err := sc.Outline().MoveNode(ctx, types.MoveNodeInput{
					ID:            args[0],
					NewParentID:   optionalID(cmd, "parent", parent),
					NewOrderIndex: at,
				})
				if err != nil {
					return err
				}
				return a.emit(cmd, n, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Moved node %s to position %d\n", n.ID, n.OrderIndex)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "new parent node ID")
	cmd.Flags().IntVar(&at, "at", 0, "position among the new siblings")
	return cmd
}

func newOutlineNodeCmd(a *app, use, short string,
	op func(types.OutlineStore, context.Context, string) (*types.OutlineNode, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				n, err := op(sc.Outline(), ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd, n, func(w io.Writer) error { return printNode(w, n) })
			})
		},
	}
}

func newOutlineReorderCmd(a *app) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "reorder <id> [id...]",
		Short: "Put sibling nodes in the given order",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				nodes, err := sc.Outline().ReorderNodes(ctx, types.ReorderNodesInput{
					ParentID: optionalID(cmd, "parent", parent),
					NodeIDs:  args,
				})
				if err != nil {
					return err
				}
				return a.emit(cmd, nodes, func(w io.Writer) error {
					for _, n := range nodes {
						fmt.Fprintf(w, "%d. %s  [%s]\n", n.OrderIndex, excerpt(&n.Content, excerptWidth), n.ID)
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent of the sibling group (default: root level)")
	return cmd
}

func newOutlineLinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "link <id> [intersection-id]",
		Short: "Link a node to an intersection; omit the intersection to unlink",
		Args:  rangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target *string
			if len(args) == 2 {
				target = &args[1]
			}
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				n, err := sc.Outline().SetIntersection(ctx, args[0], target)
				if err != nil {
					return err
				}
				return a.emit(cmd, n, func(w io.Writer) error { return printNode(w, n) })
			})
		},
	}
}

func newOutlineDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a node and everything under it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withScope(cmd, func(ctx context.Context, sc types.Scope) error {
				removed, err := sc.Outline().DeleteNode(ctx, args[0])
				if err != nil {
					return err
				}
				result := struct {
					ID      string `json:"id"`
					Removed int    `json:"removed"`
				}{args[0], removed}
				return a.emit(cmd, result, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Deleted %d node(s)\n", removed)
					return err
				})
			})
		},
	}
}
