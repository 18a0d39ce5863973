package postdb

import (
	"encoding/json"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

type Post struct {
	ID      uint64 `json:"id"`
	UserID  uint64 `json:"userId"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Upvotes int    `json:"upvotes"`
}

// CreatePost assigns the post a fresh id and persists it.
func (db *DB) CreatePost(post *Post) error {
	return db.Update(func(tx *bbolt.Tx) error {
		posts, err := tx.CreateBucketIfNotExists(postsBucket)
		if err != nil {
			return err
		}

		id, err := posts.NextSequence()
		if err != nil {
			return err
		}

		post.ID = id

		payload, err := json.Marshal(post)
		if err != nil {
			return err
		}

		return posts.Put(itob(id), payload)
	})
}

// GetPost returns nil without an error when no post exists with the id.
func (db *DB) GetPost(id uint64) (*Post, error) {
	post := &Post{}

	found, err := db.getJSON(postsBucket, itob(id), post)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return post, nil
}

func (db *DB) GetPosts() ([]*Post, error) {
	posts := []*Post{}

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(postsBucket)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			post := &Post{}
			if err := json.Unmarshal(v, post); err != nil {
				return errors.Errorf("Could not unmarshal post: %v", err)
			}

			posts = append(posts, post)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return posts, nil
}

// UpvotePost increments the post's counter atomically within one
// transaction.
func (db *DB) UpvotePost(id uint64) error {
	return db.Update(func(tx *bbolt.Tx) error {
		posts := tx.Bucket(postsBucket)
		if posts == nil {
			return errors.Errorf("No post with id %v", id)
		}

		payload := posts.Get(itob(id))
		if payload == nil {
			return errors.Errorf("No post with id %v", id)
		}

		post := &Post{}
		if err := json.Unmarshal(payload, post); err != nil {
			return err
		}

		post.Upvotes++

		payload, err := json.Marshal(post)
		if err != nil {
			return err
		}

		return posts.Put(itob(id), payload)
	})
}
