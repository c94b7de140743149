package cmd

import (
	"context"
	"fmt"
	"log"

	errors "github.com/frahmantamala/chitfund-crm/internal"
	roleDatamodel "github.com/frahmantamala/chitfund-crm/internal/core/datamodel/role"
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	"github.com/frahmantamala/chitfund-crm/internal/user"
	"github.com/spf13/cobra"
)

const superAdminRole = "Super Admin"

type seedRole struct {
	Name        string
	Description string
	Permissions []string
}

var defaultRoles = []seedRole{
	{"Branch Manager", "Runs a branch: sales, groups, collections and staff", []string{
		"dashboard.view", "leads.*", "subscribers.*", "chit-groups.*", "agents.*",
		"collections.*", "hr-employees.view", "hr-attendance.view", "accounts-reports.view",
	}},
	{"Sales Agent", "Works leads and enrols subscribers", []string{
		"dashboard.view", "leads-all.view", "leads-all.edit", "leads-new.view", "leads-new.create",
		"leads-followup.view", "leads-followup.edit", "subscribers-all.view", "subscribers-all.create",
	}},
	{"Collection Agent", "Collects instalments from subscribers", []string{
		"dashboard.view", "subscribers-all.view", "collections-daily.view", "collections-daily.create",
		"collections-dues.view",
	}},
	{"HR Manager", "Employees, attendance and payroll", []string{
		"dashboard.view", "hr.*", "agents-all.view",
	}},
	{"Accountant", "Ledger, reports and auction settlements", []string{
		"dashboard.view", "accounts.*", "chit-groups-auctions.view", "collections-dues.view",
		"hr-payroll.view",
	}},
}

var (
	adminEmail    string
	adminName     string
	adminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with the default roles and an administrator",
	Long:  `Create the protected Super Admin role, the default chit fund roles and an administrator account. Existing rows are left alone.`,
	Run: func(cmd *cobra.Command, args []string) {
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

		db := deps.Gorm
		if clearData {
			if err := db.Exec("DELETE FROM users").Error; err != nil {
				log.Fatalf("failed to clear users: %v", err)
			}
			if err := db.Exec("DELETE FROM roles").Error; err != nil {
				log.Fatalf("failed to clear roles: %v", err)
			}
			fmt.Println("Cleared users and roles")
		}

		// system roles bypass the service, which never creates protected roles
		var exists int
		row := db.Raw("SELECT 1 FROM roles WHERE name = ?", superAdminRole).Row()
		if err := row.Scan(&exists); err != nil {
			superAdmin := &roleDatamodel.Role{
				Name:        superAdminRole,
				Description: "Full access to every module",
				Permissions: string(permission.Encode([]string{permission.GlobalToken})),
				Status:      string(role.StatusActive),
				IsSystem:    true,
			}
			if err := db.WithContext(ctx).Create(superAdmin).Error; err != nil {
				log.Fatalf("failed to insert %s role: %v", superAdminRole, err)
			}
			fmt.Println("Seeded system role:", superAdminRole)
		} else {
			fmt.Println("system role already exists:", superAdminRole)
		}

		for _, r := range defaultRoles {
			_, err := deps.Roles.Create(ctx, role.CreateRoleDTO{
				Name:        r.Name,
				Description: r.Description,
				Permissions: r.Permissions,
			})
			switch {
			case err == nil:
				fmt.Println("Seeded role:", r.Name)
			case errors.IsErrorCode(err, errors.ErrCodeRoleNameTaken):
				fmt.Println("role already exists:", r.Name)
			default:
				log.Fatalf("failed to seed role %s: %v", r.Name, err)
			}
		}

		_, err = deps.Users.Create(ctx, user.CreateUserDTO{
			Email:    adminEmail,
			Name:     adminName,
			Password: adminPassword,
			Role:     superAdminRole,
		})
		switch {
		case err == nil:
			fmt.Println("Seeded admin user:", adminEmail)
		case errors.IsErrorCode(err, errors.ErrCodeEmailTaken):
			fmt.Println("admin user already exists:", adminEmail)
		default:
			log.Fatalf("failed to seed admin user: %v", err)
		}
	},
}

func init() {
	seedCmd.Flags().StringVar(&adminEmail, "admin-email", "admin@chitfund.local", "Administrator email")
	seedCmd.Flags().StringVar(&adminName, "admin-name", "Administrator", "Administrator display name")
	seedCmd.Flags().StringVar(&adminPassword, "admin-password", "changeme123", "Administrator password")
}
