// Command qfsctl is a minimal command-line client for a quorumfs
// cluster: list all files, read one, or write one, via any replica.
/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/quorumfs/quorumfs/internal/cluster"
	"github.com/quorumfs/quorumfs/internal/qlog"
	"github.com/quorumfs/quorumfs/internal/rpc"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "qfsctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("qfsctl", flag.ContinueOnError)
	var (
		list    = fs.Bool("list", false, "list all files and versions")
		read    = fs.String("read", "", "read a file with the given name")
		write   = fs.String("write", "", "write a file with the given name (pair with -path)")
		path    = fs.String("path", "", "local filesystem path of the content for -write")
		debug   = fs.Bool("debug", false, "enable debug output")
		timeout = fs.Duration("timeout", 2*time.Second, "RPC timeout")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: qfsctl [-list | -read NAME | -write NAME -path PATH] server_ip server_port")
	}
	qlog.SetDebug(*debug)

	ip := fs.Arg(0)
	var port int
	if _, err := fmt.Sscanf(fs.Arg(1), "%d", &port); err != nil {
		return fmt.Errorf("bad server_port %q: %w", fs.Arg(1), err)
	}
	server := cluster.ContactInfo{IP: ip, Port: port}
	client := rpc.NewClient(*timeout)
	ctx := context.Background()

	switch {
	case *list:
		return doList(ctx, client, server)
	case *read != "":
		return doRead(ctx, client, server, *read)
	case *write != "":
		if *path == "" {
			return fmt.Errorf("-write requires -path")
		}
		return doWrite(ctx, client, server, *write, *path)
	default:
		return fmt.Errorf("one of -list, -read, -write is required")
	}
}

func doList(ctx context.Context, client *rpc.Client, server cluster.ContactInfo) error {
	all, err := client.ListFiles(ctx, server)
	if err != nil {
		return err
	}
	for _, ci := range all {
		fmt.Printf("Server: %s, %d, Stored Files:\n", ci.Contact.IP, ci.Contact.Port)
		for _, f := range ci.Files {
			fmt.Printf("%s  (v%d)\n", f.Name, f.Version)
		}
	}
	return nil
}

func doRead(ctx context.Context, client *rpc.Client, server cluster.ContactInfo, name string) error {
	path, err := client.ReadFile(ctx, server, name)
	if err != nil {
		return err
	}
	qlog.Debugf("qfsctl: read %s at %s", name, path)
	fmt.Println(path)
	return nil
}

func doWrite(ctx context.Context, client *rpc.Client, server cluster.ContactInfo, name, path string) error {
	qlog.Debugf("qfsctl: writing %s from %s", name, path)
	return client.WriteFile(ctx, server, name, path)
}
