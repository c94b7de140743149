package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/frahmantamala/chitfund-crm/internal"
	"github.com/frahmantamala/chitfund-crm/internal/access"
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/navigation"
	"github.com/spf13/cobra"
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Inspect access decisions",
	Long: `Evaluate the navigation filter and route guard from the shell. Decisions are made
either for an explicit permission list (--permissions, no database needed) or for a
stored user (--user).`,
}

var accessNavCmd = &cobra.Command{
	Use:   "nav",
	Short: "Print the navigation visible to a permission list or user",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runAccessNav()
	},
}

var accessCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Print the route guard decision for a path",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runAccessCheck(args[0])
	},
}

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Role management commands",
}

var rolesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the role permission matrix as an xlsx workbook",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runRolesExport()
	},
}

var (
	accessPermissions []string
	accessUserID      int64
	exportOutput      string
)

func runAccessNav() {
	ctx := context.Background()
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if accessUserID > 0 {
		deps, err := initCore(ctx, cfg)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		tree, err := deps.Access.Navigation(ctx, accessUserID)
		if err != nil {
			log.Fatalf("failed to filter navigation: %v", err)
		}
		printJSON(access.NavigationResponse{Navigation: tree})
		return
	}

	set := permission.NewSet(accessPermissions...)
	printJSON(access.NavigationResponse{Navigation: navigation.Filter(cfg.Navigation, set)})
}

func runAccessCheck(path string) {
	ctx := context.Background()
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if accessUserID > 0 {
		deps, err := initCore(ctx, cfg)
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		d, err := deps.Access.CheckRoute(ctx, &accessUserID, path)
		if err != nil {
			log.Fatalf("failed to check route: %v", err)
		}
		printJSON(d)
		return
	}

	guard, err := newGuard(cfg)
	if err != nil {
		log.Fatalf("failed to build route guard: %v", err)
	}

	// without --permissions the check runs as a signed-out visitor
	var set *permission.Set
	if accessPermissions != nil {
		s := permission.NewSet(accessPermissions...)
		set = &s
	}
	printJSON(guard.Check(set, path))
}

func runRolesExport() {
	ctx := context.Background()
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	deps, err := initCore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init dependencies: %v", err)
	}
	defer deps.Close()

	f, err := os.Create(exportOutput)
	if err != nil {
		log.Fatalf("failed to create %s: %v", exportOutput, err)
	}
	defer f.Close()

	if err := deps.Roles.ExportMatrix(ctx, f, cfg.Navigation); err != nil {
		log.Fatalf("failed to export roles: %v", err)
	}
	fmt.Println("Exported role matrix to", exportOutput)
}

func newGuard(cfg *internal.Config) (*access.Guard, error) {
	return access.NewGuard(guardRoutes(cfg.Routes), cfg.Access.LoginPath, cfg.Access.DashboardPath, cfg.Navigation)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("failed to encode output: %v", err)
	}
}

func init() {
	accessCmd.PersistentFlags().StringSliceVarP(&accessPermissions, "permissions", "p", nil, "Comma separated permission list")
	accessCmd.PersistentFlags().Int64VarP(&accessUserID, "user", "u", 0, "Evaluate for a stored user id")
	rolesExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "roles.xlsx", "Output file")

	accessCmd.AddCommand(accessNavCmd)
	accessCmd.AddCommand(accessCheckCmd)
	rolesCmd.AddCommand(rolesExportCmd)

	rootCmd.AddCommand(accessCmd)
	rootCmd.AddCommand(rolesCmd)
}
