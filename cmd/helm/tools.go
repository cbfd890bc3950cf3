package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/client"
	"github.com/totegamma/helm/internal/config"
	"github.com/totegamma/helm/internal/domain"
	"github.com/totegamma/helm/internal/infra/database"
	"github.com/totegamma/helm/jwt"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update the ledger schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			commonRun()
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.Server.DatabaseDriver, cfg.Server.DatabaseDsn)
			if err != nil {
				return err
			}
			return database.Migrate(db)
		},
	}
}

func addressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "derive record addresses",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "account <externalID>",
		Short: "print the account, admin list and creator list addresses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := domain.ValidateExternalID(args[0]); err != nil {
				return err
			}
			helm.JsonPrint("addresses", map[string]string{
				"account":  domain.AccountAddress(args[0]).String(),
				"admins":   domain.AdminListAddress(args[0]).String(),
				"creators": domain.CreatorListAddress(args[0]).String(),
			})
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "content <account> <author> <contentHash>",
		Short: "print the address of a content record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			author, err := domain.ParseIdentity(args[1])
			if err != nil {
				return err
			}
			hash, err := domain.ParseContentHash(args[2])
			if err != nil {
				return err
			}
			fmt.Println(domain.ContentAddress(account, author, hash).String())
			return nil
		},
	})

	return cmd
}

func signCommand() *cobra.Command {
	var (
		key    string
		op     string
		body   string
		submit string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "sign an operation document and optionally submit it",
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, err := helm.LoadPrivateKey(key)
			if err != nil {
				return err
			}
			if !json.Valid([]byte(body)) {
				return fmt.Errorf("body is not valid json")
			}

			sd, err := helm.Sign(helm.Document[json.RawMessage]{
				Type:     op,
				Body:     json.RawMessage(body),
				SignedAt: time.Now(),
			}, privateKey)
			if err != nil {
				return err
			}

			if submit == "" {
				return json.NewEncoder(os.Stdout).Encode(sd)
			}
			result, err := client.New(submit).Commit(cmd.Context(), sd)
			if err != nil {
				return err
			}
			helm.JsonPrint("committed", result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", os.Getenv("HELM_PRIVATE_KEY"), "hex secp256k1 private key")
	cmd.Flags().StringVarP(&op, "type", "t", "", "operation type, e.g. register or approve")
	cmd.Flags().StringVarP(&body, "body", "b", "{}", "operation body as json")
	cmd.Flags().StringVar(&submit, "submit", "", "node url to commit the signed document to")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func tokenCommand() *cobra.Command {
	var (
		key      string
		audience string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "issue a bearer token for queries and the realtime feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, err := helm.LoadPrivateKey(key)
			if err != nil {
				return err
			}
			issuer, err := helm.PrivKeyToAddr(key)
			if err != nil {
				return err
			}
			now := time.Now()
			token, err := jwt.Create(jwt.Claims{
				Issuer:         issuer.Hex(),
				Subject:        "helm",
				Audience:       audience,
				IssuedAt:       strconv.FormatInt(now.Unix(), 10),
				ExpirationTime: strconv.FormatInt(now.Add(ttl).Unix(), 10),
			}, privateKey)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", os.Getenv("HELM_PRIVATE_KEY"), "hex secp256k1 private key")
	cmd.Flags().StringVarP(&audience, "audience", "a", "", "fqdn of the node")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("audience")
	return cmd
}
