// Command client is a terminal participant for a CodeSync room. It
// mirrors the document as peers edit it, and can push edits and run
// the current snippet through the backend.
//
// Usage:
//
//	client -server http://localhost:5000 -room r1 -username ana
//
// Every stdin line replaces the shared document. Commands:
//
//	/lang <cpp|javascript>   switch the room's language
//	/run                     execute the current document
//	/quit                    leave
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/rahul2762/codesync-backend/internal/config"
	"github.com/rahul2762/codesync-backend/internal/models"
	"github.com/rahul2762/codesync-backend/pkg/client"
)

func main() {
	server := flag.String("server", "", "backend origin (defaults to BACKEND_URL)")
	room := flag.String("room", "", "room id to join")
	username := flag.String("username", "", "display name")
	flag.Parse()

	if *room == "" || *username == "" {
		log.Fatal("both -room and -username are required")
	}

	if *server == "" {
		config.LoadConfig()
		*server = config.AppConfig.BackendURL
	}

	session := client.New(client.Options{
		URL:      *server,
		RoomID:   *room,
		Username: *username,
	}, client.Handlers{
		OnStateChange: func(s client.State) {
			fmt.Printf("-- %s\n", s)
		},
		OnRoster: func(clients []models.Client) {
			names := make([]string, 0, len(clients))
			for _, c := range clients {
				names = append(names, c.Username)
			}
			fmt.Printf("-- in room: %s\n", strings.Join(names, ", "))
		},
		OnPeerJoined: func(name string) {
			fmt.Printf("-- %s joined the room\n", name)
		},
		OnPeerLeft: func(_, name string) {
			fmt.Printf("-- %s left the room\n", name)
		},
		OnCodeChange: func(code string) {
			fmt.Printf("-- document updated:\n%s\n", code)
		},
		OnLanguageChange: func(language string) {
			fmt.Printf("-- language is now %s\n", language)
		},
		OnError: func(message string) {
			fmt.Printf("-- server error: %s\n", message)
		},
	})

	if err := session.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer session.Close()

	language := "javascript"
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/lang "):
			language = strings.TrimSpace(strings.TrimPrefix(line, "/lang "))
			if err := session.SetLanguage(language); err != nil {
				fmt.Printf("-- %v\n", err)
			}
		case line == "/run":
			runCode(*server, session.Code(), language)
		default:
			if err := session.SetCode(line); err != nil {
				fmt.Printf("-- %v\n", err)
			}
		}
	}
}

func runCode(server, code, language string) {
	body, err := json.Marshal(models.ExecuteRequest{Code: code, Language: language})
	if err != nil {
		fmt.Printf("-- %v\n", err)
		return
	}

	resp, err := http.Post(server+"/api/execute", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("-- execute request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result models.ExecuteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Printf("-- server returned an invalid response: %v\n", err)
		return
	}

	if result.Success {
		fmt.Println(result.Output)
		if result.Error != "" {
			fmt.Printf("stderr:\n%s\n", result.Error)
		}
	} else {
		fmt.Printf("error:\n%s\n", result.Error)
	}
}
