// Command keygen creates an RSA private key for the gateway and stores it in
// a file, the keys table or prints it.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/authgate/internal/filex"
	"github.com/dmitrijs2005/authgate/internal/server/keystore"
	"github.com/dmitrijs2005/authgate/internal/server/repositories/repomanager"
	"github.com/urfave/cli/v2"
)

var flagBits = &cli.IntFlag{
	Name:  "bits",
	Value: keystore.MinKeyBits,
	Usage: "RSA modulus size",
}

var flagOut = &cli.StringFlag{
	Name:    "out",
	Aliases: []string{"o"},
	Usage:   "write the private key PEM to this file (\"-\" prints it)",
	Value:   "-",
}

var flagForce = &cli.BoolFlag{
	Name:  "force",
	Usage: "overwrite an existing key file",
}

var flagDSN = &cli.StringFlag{
	Name:    "database-dsn",
	Usage:   "store the key in the keys table of this database instead of a file",
	EnvVars: []string{"AUTHGATE_DATABASE_DSN", "DATABASE_URL"},
}

var flagPublicOut = &cli.StringFlag{
	Name:  "public-out",
	Usage: "also write the public key PEM to this file",
}

func main() {
	app := &cli.App{
		Name:  "keygen",
		Usage: "generate the gateway RSA key",
		Flags: []cli.Flag{flagBits, flagOut, flagForce, flagDSN, flagPublicOut},
		Action: func(cCtx *cli.Context) error {
			priv, err := keystore.Generate(cCtx.Int(flagBits.Name))
			if err != nil {
				return err
			}
			ks, err := keystore.FromKey(priv)
			if err != nil {
				return err
			}
			privatePEM := keystore.EncodePrivateKey(priv)

			if dsn := cCtx.String(flagDSN.Name); dsn != "" {
				if err := storeInDatabase(cCtx.Context, dsn, privatePEM); err != nil {
					return err
				}
			} else if out := cCtx.String(flagOut.Name); out == "-" {
				if _, err := os.Stdout.Write(privatePEM); err != nil {
					return err
				}
			} else if err := filex.WritePrivateFile(out, privatePEM, cCtx.Bool(flagForce.Name)); err != nil {
				return err
			}

			if p := cCtx.String(flagPublicOut.Name); p != "" {
				if err := filex.WritePrivateFile(p, ks.Public(), cCtx.Bool(flagForce.Name)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func storeInDatabase(ctx context.Context, dsn string, privatePEM []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := repomanager.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return err
	}
	id, err := rm.Keys(db).Insert(ctx, privatePEM)
	if err != nil {
		return err
	}
	log.Printf("stored key %d", id)
	return nil
}
