package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/clawdia-sh/research-core/internal/config"
	"github.com/clawdia-sh/research-core/internal/search"
)

func main() {
	key := os.Getenv("SERPER_API_KEY")
	q := "What is love?"
	if len(os.Args) > 1 {
		q = os.Args[1]
	}
	client := config.NewHTTPClient(20 * time.Second)
	prov := &search.Serper{APIKey: key, HTTPClient: client}
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()
	res, err := prov.Search(ctx, q, 5)
	fmt.Println("err:", err)
	for i, r := range res {
		fmt.Printf("%d. %s — %s\n", i+1, r.Title, r.URL)
	}
}
