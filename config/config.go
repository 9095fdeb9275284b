package config

import (
	"log"
	"os"

	"restaurant-pos/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// JWTSecret used to sign tokens — read from env or fallback
var JWTSecret = loadJWTSecret()

// loadJWTSecret pulls .env in before reading the variable: package-level
// vars initialize before main gets a chance to call godotenv.Load, so a
// secret supplied only via .env would otherwise be silently ignored.
func loadJWTSecret() []byte {
	_ = godotenv.Load()
	return []byte(GetEnv("JWT_SECRET", "restaurant_pos_super_secret_2024"))
}

func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func InitDB() {
	var err error
	DB, err = gorm.Open(sqlite.Open(GetEnv("POS_DB_PATH", "pos_server.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	err = DB.AutoMigrate(
		&models.User{},
		&models.Store{},
		&models.Order{},
		&models.Product{},
		&models.Category{},
		&models.DiningTable{},
		&models.Setting{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	seedAdmin()

	log.Println("✅ Database connected and migrated successfully")
}

// seedAdmin creates a default store and admin account on a fresh database.
// POS staff do not self-register; the admin creates them.
func seedAdmin() {
	var count int64
	DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		return
	}

	store := models.Store{
		ID:   uuid.NewString(),
		Name: GetEnv("POS_DEFAULT_STORE", "Main Store"),
	}
	if err := DB.Create(&store).Error; err != nil {
		log.Fatal("Failed to seed default store:", err)
	}

	hash, err := bcrypt.GenerateFromPassword(
		[]byte(GetEnv("POS_ADMIN_PASSWORD", "admin123")), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash admin password:", err)
	}
	admin := models.User{
		Name:         "Administrator",
		Email:        GetEnv("POS_ADMIN_EMAIL", "admin@pos.local"),
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		StoreID:      store.ID,
	}
	if err := DB.Create(&admin).Error; err != nil {
		log.Fatal("Failed to seed admin user:", err)
	}
	log.Printf("Seeded default store %q and admin %s", store.Name, admin.Email)
}
