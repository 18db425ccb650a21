// client performs single operations against a sectorfs server, or runs a
// small interactive shell.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/sectorfs/pkg/client"
	sectorfs "github.com/example/sectorfs/pkg/fs"
)

func main() {
	serverAddr := flag.String("server", "localhost:5649", "sectorfs server address")
	operation := flag.String("op", "shell", "Operation: create|mkdir|rm|ls|cat|write|stat|shell")
	path := flag.String("path", "/", "Target path")
	data := flag.String("data", "", "Data for write operations")
	flag.Parse()

	config := client.DefaultConfig()
	config.ServerAddress = *serverAddr
	c, err := client.New(config)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if *operation == "shell" {
		runShell(ctx, c)
		return
	}
	if err := runOp(ctx, c, *operation, []string{*path, *data}); err != nil {
		log.Fatalf("%s failed: %v", *operation, err)
	}
}

func runShell(ctx context.Context, c *client.Client) {
	fmt.Println("sectorfs shell; commands: create mkdir rm ls cat write cd stat flush exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return
		}
		if err := runOp(ctx, c, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func runOp(ctx context.Context, c *client.Client, op string, args []string) error {
	path := arg(args, 0)
	switch op {
	case "create":
		size := int64(0)
		if s := arg(args, 1); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return err
			}
			size = v
		}
		return c.CreateFile(ctx, path, size)

	case "mkdir":
		return c.MakeDir(ctx, path)

	case "rm":
		return c.Remove(ctx, path)

	case "cd":
		return c.ChangeDir(ctx, path)

	case "ls":
		if path == "" {
			path = "."
		}
		open, err := c.Open(ctx, path)
		if err != nil {
			return err
		}
		defer c.CloseFd(ctx, open.Fd)
		entries, err := c.ReadDir(ctx, open.Fd)
		if err != nil {
			return err
		}
		for _, ent := range entries {
			fmt.Printf("%8d  %s\n", ent.Inode, ent.Name)
		}
		return nil

	case "cat":
		open, err := c.Open(ctx, path)
		if err != nil {
			return err
		}
		defer c.CloseFd(ctx, open.Fd)
		for {
			data, eof, err := c.Read(ctx, open.Fd, 64*1024)
			if err != nil {
				return err
			}
			os.Stdout.Write(data)
			if eof {
				return nil
			}
		}

	case "write":
		payload := strings.Join(args[1:], " ")
		open, err := c.Open(ctx, path)
		if err != nil {
			// create on demand, like a shell redirect would
			if cerr := c.CreateFile(ctx, path, 0); cerr != nil {
				return err
			}
			if open, err = c.Open(ctx, path); err != nil {
				return err
			}
		}
		defer c.CloseFd(ctx, open.Fd)
		if _, err := c.Seek(ctx, open.Fd, 0, sectorfs.SeekEnd); err != nil {
			return err
		}
		n, err := c.Write(ctx, open.Fd, []byte(payload))
		if err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes\n", n)
		return nil

	case "stat":
		open, err := c.Open(ctx, path)
		if err != nil {
			return err
		}
		defer c.CloseFd(ctx, open.Fd)
		stat, err := c.Stat(ctx, open.Fd)
		if err != nil {
			return err
		}
		kind := "file"
		if stat.IsDir {
			kind = "directory"
		}
		fmt.Printf("%s: %s, inode %d, %d bytes\n", path, kind, stat.Inode, stat.Size)
		return nil

	case "flush":
		return c.Flush(ctx)

	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}
