package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/traverse/internal/curriculum"
	"github.com/abhisek/traverse/internal/render"
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Create and inspect learning paths",
}

var pathCreateCmd = &cobra.Command{
	Use:   "create <goal>",
	Short: "Generate a learning path for a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd, depsOptions{requireLLM: true})
		if err != nil {
			return err
		}
		defer d.close(cmd.Context())

		description, _ := cmd.Flags().GetString("description")
		domain, _ := cmd.Flags().GetString("domain")
		level, _ := cmd.Flags().GetString("level")
		background, _ := cmd.Flags().GetString("background")

		p, err := d.svc.CreatePath(cmd.Context(), curriculum.CreatePathInput{
			UserID:      userFlag(cmd),
			Goal:        args[0],
			Description: description,
			Domain:      domain,
			Level:       level,
			Background:  background,
		})
		if err != nil {
			return err
		}
		fmt.Print(render.Path(p))
		return nil
	},
}

var pathListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your learning paths",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := buildDeps(cmd, depsOptions{})
		if err != nil {
			return err
		}
		defer d.close(cmd.Context())

		paths, err := d.svc.ListPaths(cmd.Context(), userFlag(cmd))
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Println("No learning paths yet. Create one with: traverse path create <goal>")
			return nil
		}
		fmt.Print(render.Paths(paths))
		return nil
	},
}

var pathShowCmd = &cobra.Command{
	Use:   "show <path-id>",
	Short: "Show a path's lessons in prerequisite order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd, depsOptions{})
		if err != nil {
			return err
		}
		defer d.close(cmd.Context())

		p, err := d.svc.GetPath(cmd.Context(), userFlag(cmd), args[0])
		if err != nil {
			return err
		}
		fmt.Print(render.Path(p))
		return nil
	},
}

var pathGraphCmd = &cobra.Command{
	Use:   "graph <path-id>",
	Short: "Print the path as a Mermaid diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd, depsOptions{})
		if err != nil {
			return err
		}
		defer d.close(cmd.Context())

		out, err := d.svc.Graph(cmd.Context(), userFlag(cmd), args[0])
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var pathDeleteCmd = &cobra.Command{
	Use:   "delete <path-id>",
	Short: "Delete a path with its progress and challenges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd, depsOptions{})
		if err != nil {
			return err
		}
		defer d.close(cmd.Context())

		user := userFlag(cmd)
		err = d.retry(cmd.Context(), func() error {
			return d.svc.DeletePath(cmd.Context(), user, args[0])
		})
		if err != nil {
			return err
		}
		fmt.Printf("Deleted path %s\n", args[0])
		return nil
	},
}

func init() {
	pathCreateCmd.Flags().String("description", "", "What you want to be able to do")
	pathCreateCmd.Flags().String("domain", "", "Subject area, e.g. databases")
	pathCreateCmd.Flags().String("level", "", "Current level: beginner, intermediate or advanced")
	pathCreateCmd.Flags().String("background", "", "Relevant prior experience")

	pathCmd.AddCommand(pathCreateCmd)
	pathCmd.AddCommand(pathListCmd)
	pathCmd.AddCommand(pathShowCmd)
	pathCmd.AddCommand(pathGraphCmd)
	pathCmd.AddCommand(pathDeleteCmd)
}
