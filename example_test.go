package audittrail_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aretw0/audittrail"
	"github.com/aretw0/audittrail/pkg/core"
	"github.com/aretw0/audittrail/pkg/sink"
)

// Example_save demonstrates how a save is turned into audit lines.
func Example_save() {
	ctx := context.Background()

	rt, err := audittrail.New(ctx, audittrail.DefaultSettings(),
		audittrail.WithSink(sink.NewWriter(os.Stdout)),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	err = rt.Store.Put(ctx, &core.Record{
		ID: "page", Store: "master", Path: "/home/page", Name: "page", Language: "en", Version: 1,
		Fields:     []core.Field{{ID: "f-title", Name: "Title", Value: "Old"}},
		Statistics: core.Statistics{Created: created, Updated: created},
	})
	if err != nil {
		log.Fatal(err)
	}

	// Saved ten minutes later: the change is reported with a summary line.
	rt.Service.SetClock(func() time.Time { return created.Add(10 * time.Minute) })

	page, _ := rt.Store.Get(ctx, core.Ref{Store: "master", ID: "page"})
	page.SetValue("Title", "New")
	if err := rt.Service.Save(ctx, core.Actor{User: "editor"}, page); err != nil {
		log.Fatal(err)
	}
	// Output:
	// (editor): SAVE: master:/home/page, name: page, language: en, version: 1, id: page
	// (editor): SAVE: master:/home/page, name: page, language: en, version: 1, id: page, ** [Title]: new: New, old: Old
}

// Example_veto demonstrates the duplicate-name guard.
func Example_veto() {
	ctx := context.Background()

	settings := audittrail.DefaultSettings()
	settings.Audit.PreventDuplicateItemNames = true
	rt, err := audittrail.New(ctx, settings, audittrail.WithSink(sink.NewWriter(os.Stdout)))
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	rt.Store.Put(ctx, &core.Record{ID: "home", Store: "master", Path: "/home", Name: "home"})
	rt.Store.Put(ctx, &core.Record{ID: "about", Store: "master", Path: "/home/about-us", Name: "About Us", ParentID: "home"})

	_, err = rt.Service.Create(ctx, core.Actor{User: "editor", Site: "shell"}, core.Ref{Store: "master", ID: "home"}, "about-us", "")
	fmt.Println(err)
	// Output:
	// creating "about-us": Name "About Us" is already in use. Please use another name for the item.
}
