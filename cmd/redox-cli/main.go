// Command redox-cli is a minimal interactive REPL for a Redox server: it
// connects, reads a line from stdin, writes it to the socket verbatim,
// and prints the single reply line back. No command validation happens
// client-side; that is entirely the server's job.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:2001", "Redox server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redox-cli: %s\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("Connected to Redox server. Type your commands (e.g., 'SET key value' or 'GET key'):")

	stdin := bufio.NewScanner(os.Stdin)
	reader := bufio.NewReader(conn)

	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			return
		}
		input := stdin.Text()
		if strings.EqualFold(strings.TrimSpace(input), "quit") {
			return
		}

		if _, err := conn.Write([]byte(input + "\n")); err != nil {
			fmt.Fprintf(os.Stderr, "redox-cli: %s\n", err)
			return
		}

		response, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "redox-cli: %s\n", err)
			return
		}
		fmt.Print("< " + response)
	}
}
