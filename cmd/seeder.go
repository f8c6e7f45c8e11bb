package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with roles, permissions and an admin account",
	Long:  `Seed the database with the role and permission catalogue plus a default admin account for development.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			// children before parents
			tables := []string{
				"activity_logs", "people", "family_trees", "gallery_items",
				"books", "users", "role_permissions", "permissions", "roles",
			}
			for _, table := range tables {
				if _, err := db.Exec("DELETE FROM " + table); err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		roles := []string{"admin", "member"}
		for _, name := range roles {
			var exists int
			if err := db.QueryRow("SELECT 1 FROM roles WHERE name = $1", name).Scan(&exists); err == nil {
				continue
			}
			if _, err := db.Exec("INSERT INTO roles (name, created_at) VALUES ($1, now())", name); err != nil {
				log.Fatalf("failed to insert role %s: %v", name, err)
			}
			fmt.Println("Seeded role:", name)
		}

		permissions := []struct {
			Name string
			Desc string
		}{
			{"manage_books", "Can manage any book"},
			{"manage_gallery", "Can manage any gallery item"},
			{"manage_all_trees", "Can manage any family tree"},
			{"manage_users", "Can manage user accounts"},
		}
		for _, p := range permissions {
			var pid int64
			if err := db.QueryRow("SELECT id FROM permissions WHERE name = $1", p.Name).Scan(&pid); err == nil {
				continue
			}
			if _, err := db.Exec("INSERT INTO permissions (name, description, created_at) VALUES ($1, $2, now())", p.Name, p.Desc); err != nil {
				log.Fatalf("failed to insert permission %s: %v", p.Name, err)
			}
			fmt.Println("Seeded permission:", p.Name)
		}

		var adminRoleID int64
		if err := db.QueryRow("SELECT id FROM roles WHERE name = $1", "admin").Scan(&adminRoleID); err != nil {
			log.Fatalf("failed to lookup admin role id: %v", err)
		}

		for _, p := range permissions {
			var pid int64
			if err := db.QueryRow("SELECT id FROM permissions WHERE name = $1", p.Name).Scan(&pid); err != nil {
				log.Fatalf("permission not found after insert %s: %v", p.Name, err)
			}

			var exists int
			if err := db.QueryRow("SELECT 1 FROM role_permissions WHERE role_id = $1 AND permission_id = $2", adminRoleID, pid).Scan(&exists); err == nil {
				continue
			}
			if _, err := db.Exec("INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)", adminRoleID, pid); err != nil {
				log.Fatalf("failed to grant permission %s to admin role: %v", p.Name, err)
			}
		}
		fmt.Println("Granted all permissions to admin role")

		adminEmail := "admin@archive.local"
		var exists int
		if err := db.QueryRow("SELECT 1 FROM users WHERE email = $1", adminEmail).Scan(&exists); err == nil {
			fmt.Println("Admin user already exists:", adminEmail)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte("changeme123"), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash admin password: %v", err)
		}
		if _, err := db.Exec(
			"INSERT INTO users (full_name, email, password_hash, status, role_id, created_at, updated_at) VALUES ($1, $2, $3, 'active', $4, now(), now())",
			"Archive Admin", adminEmail, string(hash), adminRoleID,
		); err != nil {
			log.Fatalf("failed to insert admin user: %v", err)
		}
		fmt.Println("Seeded admin user:", adminEmail)
	},
}
