package database

import (
	"fmt"
	"log"
	"time"

	"aurumvault/internal/config"
	"aurumvault/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMySQL(cfg *config.MySQLConfig) *gorm.DB {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("连接 MySQL 失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("获取底层 DB 失败: %v", err)
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db
}

// InitVaultMySQL 初始化 AurumVault 侧数据库（账本、审核、发件箱）
func InitVaultMySQL(cfg *config.MySQLConfig) *gorm.DB {
	db := openMySQL(cfg)

	err := db.AutoMigrate(
		&model.Account{},
		&model.Transaction{},
		&model.PaymentVerification{},
		&model.Payee{},
		&model.CategoryThreshold{},
		&model.AuditLog{},
		&model.WebhookOutbox{},
	)
	if err != nil {
		log.Fatalf("自动迁移表结构失败: %v", err)
	}

	log.Println("AurumVault MySQL 连接成功")
	return db
}

// InitUHIMySQL 初始化 UHI 侧数据库（贷款、发票、还款记录）
// 两套系统各自独立部署，没有共享数据库
func InitUHIMySQL(cfg *config.MySQLConfig) *gorm.DB {
	db := openMySQL(cfg)

	err := db.AutoMigrate(
		&model.Loan{},
		&model.LoanInvoice{},
		&model.LoanPayment{},
	)
	if err != nil {
		log.Fatalf("自动迁移表结构失败: %v", err)
	}

	log.Println("UHI MySQL 连接成功")
	return db
}
