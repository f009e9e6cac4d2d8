// Command server runs the Saveur recipe API.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/saveur/app/repositories"
	"github.com/shashiranjanraj/saveur/app/services"
	"github.com/shashiranjanraj/saveur/config"
	"github.com/shashiranjanraj/saveur/internal/server"
	"github.com/shashiranjanraj/saveur/pkg/database"
	"github.com/shashiranjanraj/saveur/pkg/storage"
	"github.com/shashiranjanraj/saveur/pkg/workerpool"
)

func main() {
	root := &cobra.Command{
		Use:   "saveur",
		Short: "Saveur recipe sharing API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Start()
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Start()
		},
	}

	var seedEmail, seedPassword string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seedEmail == "" || seedPassword == "" {
				return fmt.Errorf("--email and --password are required")
			}
			if err := config.Load(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := database.Connect(ctx); err != nil {
				return fmt.Errorf("mongo: %w", err)
			}
			defer database.Disconnect(context.Background()) //nolint:errcheck

			svc := services.NewAuthService(repositories.NewUserRepository(), repositories.NewRecipeRepository())
			user, err := svc.Register(ctx, seedEmail, seedPassword, true)
			if err != nil {
				return err
			}
			fmt.Printf("admin created: %s (%s)\n", user.Email, user.ID.Hex())
			return nil
		},
	}
	seed.Flags().StringVar(&seedEmail, "email", "", "admin email address")
	seed.Flags().StringVar(&seedPassword, "password", "", "admin password")

	routesCmd := &cobra.Command{
		Use:   "routes",
		Short: "List the registered API routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			storage.Connect()

			pool := workerpool.New(1)
			defer pool.Shutdown()

			r := server.NewRouter(pool)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATH\tNAME")
			for _, route := range r.Routes() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", route.Method, route.Path, route.Name)
			}
			return w.Flush()
		},
	}

	root.AddCommand(serve, seed, routesCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
