/*
 * Copyright (c) "GraphBolt"
 * GraphBolt Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */

// Command boltcli is a small diagnostic client: verify connectivity
// against a Bolt server, or run one Cypher statement and print its
// records, without writing any application code.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphbolt/driver/graphbolt"
	"github.com/graphbolt/driver/graphbolt/log"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var (
	uri      string
	username string
	password string
	database string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "boltcli",
		Short: "A diagnostic client for Bolt-speaking graph database servers",
	}
	rootCmd.PersistentFlags().StringVar(&uri, "uri", "bolt://localhost:7687", "connection URI (bolt/bolt+s/bolt+ssc/neo4j/neo4j+s/neo4j+ssc)")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "basic auth principal; empty means no auth")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "basic auth credentials")
	rootCmd.PersistentFlags().StringVar(&database, "database", "", "database name; empty means the server's default")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "error, warn, info, or debug")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("boltcli v%s (%s)\n", version, commit)
		},
	})

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify connectivity against the server and print its identity",
		RunE:  runVerify,
	}
	rootCmd.AddCommand(verifyCmd)

	runCmd := &cobra.Command{
		Use:   "run [cypher]",
		Short: "Run one Cypher statement and print its records as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newDriver() (*graphbolt.Driver, error) {
	auth := graphbolt.NoAuth()
	if username != "" {
		auth = graphbolt.BasicAuth(username, password, "")
	}
	return graphbolt.NewDriver(uri, auth, graphbolt.WithLogging(log.ParseLevel(logLevel), os.Stderr))
}

func runVerify(cmd *cobra.Command, args []string) error {
	driver, err := newDriver()
	if err != nil {
		return err
	}
	defer driver.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return err
	}
	fmt.Printf("connected to %s (routing=%v)\n", driver.Target(), driver.IsRouting())
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	driver, err := newDriver()
	if err != nil {
		return err
	}
	defer driver.Close(context.Background())

	ctx := context.Background()
	session := driver.NewSession(graphbolt.SessionConfig{DatabaseName: database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, args[0], nil)
	if err != nil {
		return err
	}

	consumed := 0
	for result.Next(ctx) {
		consumed++
		rec := result.Record()
		row := make(map[string]any, len(rec.Keys))
		for i, k := range rec.Keys {
			row[k] = rec.Values[i]
		}
		line, err := json.Marshal(row)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
	}
	if err := result.Err(); err != nil {
		return err
	}

	summary, err := result.Consume(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "consumed %d record(s) in %dms\n", consumed, summary.ResultConsumedAfter)
	return nil
}
