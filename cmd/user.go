/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/nota-esign/internal/database"
	"github.com/mautops/nota-esign/internal/model"
	"github.com/mautops/nota-esign/internal/repository"
	"github.com/mautops/nota-esign/internal/utils"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// userCmd 用户管理
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local users mapped to Keycloak subjects",
}

// userCreateCmd 注册用户
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a user for a Keycloak subject",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		subject, _ := flags.GetString("keycloak-id")
		name, _ := flags.GetString("name")
		email, _ := flags.GetString("email")
		role, _ := flags.GetString("role")
		jabatan, _ := flags.GetString("jabatan")
		nik, _ := flags.GetString("nik")
		skpdID, _ := flags.GetUint("skpd")

		user := &model.User{
			KeycloakID: subject,
			Name:       name,
			Email:      email,
			Role:       model.Role(role),
			Jabatan:    jabatan,
			Active:     true,
		}
		if nik != "" {
			if err := utils.ValidateNIK(nik); err != nil {
				return err
			}
			user.NIK = &nik
		}
		if skpdID != 0 {
			user.SkpdID = &skpdID
		}
		if err := user.Validate(); err != nil {
			return err
		}

		return withDB(cmd, func(ctx context.Context, db *gorm.DB) error {
			if user.SkpdID != nil {
				if _, err := repository.NewSkpdRepository(db).FindByID(ctx, *user.SkpdID); err != nil {
					return fmt.Errorf("skpd %d: %w", *user.SkpdID, err)
				}
			}
			if err := repository.NewUserRepository(db).Create(ctx, user); err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			cmd.Printf("user %d created (%s, %s)\n", user.ID, user.Name, user.Role)
			return nil
		})
	},
}

// skpdCmd SKPD 管理
var skpdCmd = &cobra.Command{
	Use:   "skpd",
	Short: "Manage organisational units",
}

// skpdCreateCmd 创建 SKPD
var skpdCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an SKPD, optionally supervised by an asisten",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		asistenID, _ := cmd.Flags().GetUint("asisten")

		return withDB(cmd, func(ctx context.Context, db *gorm.DB) error {
			skpd := &model.Skpd{Name: name, Active: true}
			if asistenID != 0 {
				asisten, err := repository.NewUserRepository(db).FindByID(ctx, asistenID)
				if err != nil {
					return fmt.Errorf("asisten %d: %w", asistenID, err)
				}
				if asisten.Role != model.RoleAsisten {
					return fmt.Errorf("user %d is not an asisten", asistenID)
				}
				skpd.AsistenID = &asistenID
			}
			if err := repository.NewSkpdRepository(db).Create(ctx, skpd); err != nil {
				return fmt.Errorf("failed to create skpd: %w", err)
			}
			cmd.Printf("skpd %d created (%s)\n", skpd.ID, skpd.Name)
			return nil
		})
	},
}

// withDB 连接数据库并执行 fn
func withDB(cmd *cobra.Command, fn func(ctx context.Context, db *gorm.DB) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	return fn(ctx, db)
}

func init() {
	rootCmd.AddCommand(userCmd, skpdCmd)
	userCmd.AddCommand(userCreateCmd)
	skpdCmd.AddCommand(skpdCreateCmd)

	userCreateCmd.Flags().String("keycloak-id", "", "Keycloak subject (sub claim)")
	userCreateCmd.Flags().String("name", "", "Display name")
	userCreateCmd.Flags().String("email", "", "Email address")
	userCreateCmd.Flags().String("role", string(model.RoleSkpd), "Role: admin, skpd, asisten, sekda, bupati")
	userCreateCmd.Flags().String("jabatan", "", "Position title")
	userCreateCmd.Flags().String("nik", "", "16 digit national id used for signing")
	userCreateCmd.Flags().Uint("skpd", 0, "SKPD id for skpd role users")
	_ = userCreateCmd.MarkFlagRequired("keycloak-id")
	_ = userCreateCmd.MarkFlagRequired("name")

	skpdCreateCmd.Flags().String("name", "", "SKPD name")
	skpdCreateCmd.Flags().Uint("asisten", 0, "Supervising asisten user id")
	_ = skpdCreateCmd.MarkFlagRequired("name")
}
