package main

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/quartermasterhq/quartermaster/internal/config"
	"github.com/quartermasterhq/quartermaster/internal/database"
	"github.com/quartermasterhq/quartermaster/internal/models"
)

// Seeds a local development database with users, software titles, and a
// notification provider so the API is usable right after `go run ./cmd/api`.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Software{},
		&models.SeatAssignment{},
		&models.AuditEntry{},
		&models.AuditChange{},
		&models.User{},
		&models.NotificationProvider{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	fmt.Println("✓ Database migrated successfully")

	users := []struct {
		email, name, employee, role, password string
	}{
		{"admin@example.com", "Admin", "E-0001", "admin", "changeme"},
		{"alice@example.com", "Alice Winters", "E-1042", "user", "changeme"},
		{"bob@example.com", "Bob Okafor", "E-1077", "user", "changeme"},
	}
	for _, u := range users {
		var existing models.User
		if err := db.Where("email = ?", u.email).First(&existing).Error; err == nil {
			continue
		}
		user := models.User{
			UUID:           uuid.NewString(),
			Email:          u.email,
			Name:           u.name,
			EmployeeNumber: u.employee,
			Role:           u.role,
			Enabled:        true,
		}
		if err := user.SetPassword(u.password); err != nil {
			log.Fatal("Failed to hash password:", err)
		}
		if err := db.Create(&user).Error; err != nil {
			log.Fatal("Failed to seed user:", err)
		}
		fmt.Printf("✓ Seeded user %s\n", u.email)
	}

	titles := []models.Software{
		{UUID: uuid.NewString(), Name: "Photomorph Pro", Publisher: "Lightbend Studios", TotalSeats: 5},
		{UUID: uuid.NewString(), Name: "TurboCAD 2026", Publisher: "Draftworks", TotalSeats: 2},
		{UUID: uuid.NewString(), Name: "Legacy Terminal", Publisher: "Retired Inc", TotalSeats: 1, Archived: true},
	}
	for _, sw := range titles {
		var existing models.Software
		if err := db.Where("name = ?", sw.Name).First(&existing).Error; err == nil {
			continue
		}
		if err := db.Create(&sw).Error; err != nil {
			log.Fatal("Failed to seed software:", err)
		}
		fmt.Printf("✓ Seeded software %s\n", sw.Name)
	}

	var providers int64
	db.Model(&models.NotificationProvider{}).Count(&providers)
	if providers == 0 {
		provider := models.NotificationProvider{
			Name:              "Example Webhook",
			Type:              "webhook",
			URL:               "http://localhost:9000/hooks/audit",
			Enabled:           false,
			NotifyAssignments: true,
			NotifyReleases:    true,
		}
		if err := db.Create(&provider).Error; err != nil {
			log.Fatal("Failed to seed notification provider:", err)
		}
		fmt.Println("✓ Seeded example notification provider (disabled)")
	}

	fmt.Println("Done.")
}
