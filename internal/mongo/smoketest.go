// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package mongo checks that databases granted by a provider
// can be written to and read from.
package mongo

import (
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"
)

var logger = loggo.GetLogger("mongoconsumer.mongo")

const (
	// Collection is where the test document is written.
	Collection = "test"

	// DialTimeout bounds the time spent connecting to a replica set.
	DialTimeout = 30 * time.Second
)

// testDocument is the document written to and read back from
// every database.
var testDocument = bson.M{"test": "data"}

// Session is the part of a database session the smoke test uses.
type Session interface {
	Insert(database, collection string, doc interface{}) error
	FindOne(database, collection string, query, result interface{}) error
	Close()
}

// DialFunc opens a session to the replica set described by info.
type DialFunc func(info *mgo.DialInfo) (Session, error)

// SmokeTester round-trips a document through databases.
type SmokeTester struct {
	dial DialFunc
}

// NewSmokeTester returns a SmokeTester that dials with dial.
// A nil dial connects with mgo.
func NewSmokeTester(dial DialFunc) *SmokeTester {
	if dial == nil {
		dial = DialMgo
	}
	return &SmokeTester{dial: dial}
}

// SmokeTest connects using uri, inserts the test document into each
// database and reads it back. Any failure is returned unhandled.
func (t *SmokeTester) SmokeTest(uri string, databases []string) error {
	info, err := mgo.ParseURL(uri)
	if err != nil {
		return errors.Annotate(err, "parsing replica set URI")
	}
	info.Timeout = DialTimeout
	session, err := t.dial(info)
	if err != nil {
		return errors.Annotatef(err, "connecting to %v", info.Addrs)
	}
	defer session.Close()

	for _, database := range databases {
		if err := session.Insert(database, Collection, testDocument); err != nil {
			return errors.Annotatef(err, "inserting into %s.%s", database, Collection)
		}
		logger.Infof("inserted %v into %s.%s", testDocument, database, Collection)

		var result bson.M
		if err := session.FindOne(database, Collection, testDocument, &result); err != nil {
			return errors.Annotatef(err, "reading from %s.%s", database, Collection)
		}
		logger.Infof("read %v from %s.%s", result, database, Collection)
	}
	return nil
}

type mgoSession struct {
	session *mgo.Session
}

// DialMgo connects to MongoDB with the mgo driver.
func DialMgo(info *mgo.DialInfo) (Session, error) {
	session, err := mgo.DialWithInfo(info)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &mgoSession{session: session}, nil
}

func (s *mgoSession) Insert(database, collection string, doc interface{}) error {
	return s.session.DB(database).C(collection).Insert(doc)
}

func (s *mgoSession) FindOne(database, collection string, query, result interface{}) error {
	return s.session.DB(database).C(collection).Find(query).One(result)
}

func (s *mgoSession) Close() {
	s.session.Close()
}
