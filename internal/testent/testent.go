// Package testent is a blog shaped domain used to exercise the aggregate mapper.
//
// A Post is the root of an aggregate which owns its Comments (and their reply trees),
// its Cover and its Attachments, while the Author stays outside as a boundary reference.
package testent

import (
	"go.llib.dev/aggregate/mapping"
	"go.llib.dev/aggregate/port/store"
)

type Author struct {
	ID    int64
	Name  string
	Posts []*Post
}

type Post struct {
	ID          int64
	Title       string
	Author      *Author
	Comments    []*Comment
	Cover       Media
	Attachments []Media
}

type Comment struct {
	ID      int64
	Body    string
	Post    *Post
	Replies []*Comment
}

// Media is either an *Image or a *Video.
type Media interface {
	MediaURL() string
}

type Image struct {
	ID    int64
	URL   string
	Width int
}

func (i *Image) MediaURL() string { return i.URL }

type Video struct {
	ID      int64
	URL     string
	Seconds int
}

func (v *Video) MediaURL() string { return v.URL }

const (
	AuthorType  = "Author"
	PostType    = "Post"
	CommentType = "Comment"
	ImageType   = "Image"
	VideoType   = "Video"
)

func NewRegistry() (*mapping.Registry, error) {
	return mapping.NewRegistry(AuthorConfig(), PostConfig(), CommentConfig(), ImageConfig(), VideoConfig())
}

func AuthorConfig() mapping.EntityConfig[Author, int64] {
	return mapping.EntityConfig[Author, int64]{
		TypeName:  AuthorType,
		TableName: "authors",
		ToValues: func(a *Author) (store.Values, error) {
			return store.Values{"name": a.Name}, nil
		},
		FromValues: func(vs store.Values, a *Author) (err error) {
			a.Name, err = store.ValueOf[string](vs, "name")
			return err
		},
		Relations: []mapping.Association{
			mapping.HasManyOf[Author, *Post](mapping.Ref{
				Name:       "posts",
				Targets:    []string{PostType},
				ForeignKey: "author_id",
			}, func(a *Author) []*Post { return a.Posts },
				func(a *Author, ps []*Post) { a.Posts = ps }),
		},
	}
}

func PostConfig() mapping.EntityConfig[Post, int64] {
	return mapping.EntityConfig[Post, int64]{
		TypeName:  PostType,
		TableName: "posts",
		ToValues: func(p *Post) (store.Values, error) {
			return store.Values{"title": p.Title}, nil
		},
		FromValues: func(vs store.Values, p *Post) (err error) {
			p.Title, err = store.ValueOf[string](vs, "title")
			return err
		},
		Relations: []mapping.Association{
			mapping.BelongsToOf[Post, *Author](mapping.Ref{
				Name:       "author",
				Targets:    []string{AuthorType},
				ForeignKey: "author_id",
			}, func(p *Post) *Author { return p.Author },
				func(p *Post, a *Author) { p.Author = a }),
			mapping.HasManyOf[Post, *Comment](mapping.Ref{
				Name:       "comments",
				Targets:    []string{CommentType},
				Owned:      true,
				ForeignKey: "post_id",
			}, func(p *Post) []*Comment { return p.Comments },
				func(p *Post, cs []*Comment) { p.Comments = cs }),
			mapping.BelongsToOf[Post, Media](mapping.Ref{
				Name:        "cover",
				Targets:     []string{ImageType, VideoType},
				Owned:       true,
				ForeignKey:  "cover_id",
				ForeignType: "cover_type",
			}, func(p *Post) Media { return p.Cover },
				func(p *Post, m Media) { p.Cover = m }),
			mapping.HasManyOf[Post, Media](mapping.Ref{
				Name:        "attachments",
				Targets:     []string{ImageType, VideoType},
				Owned:       true,
				ForeignKey:  "attachable_id",
				ForeignType: "attachable_type",
			}, func(p *Post) []Media { return p.Attachments },
				func(p *Post, ms []Media) { p.Attachments = ms }),
		},
	}
}

func CommentConfig() mapping.EntityConfig[Comment, int64] {
	return mapping.EntityConfig[Comment, int64]{
		TypeName:  CommentType,
		TableName: "comments",
		ToValues: func(c *Comment) (store.Values, error) {
			return store.Values{"body": c.Body}, nil
		},
		FromValues: func(vs store.Values, c *Comment) (err error) {
			c.Body, err = store.ValueOf[string](vs, "body")
			return err
		},
		Relations: []mapping.Association{
			mapping.BelongsToOf[Comment, *Post](mapping.Ref{
				Name:       "post",
				Targets:    []string{PostType},
				ForeignKey: "post_id",
			}, func(c *Comment) *Post { return c.Post },
				func(c *Comment, p *Post) { c.Post = p }),
			mapping.HasManyOf[Comment, *Comment](mapping.Ref{
				Name:       "replies",
				Targets:    []string{CommentType},
				Owned:      true,
				ForeignKey: "parent_id",
			}, func(c *Comment) []*Comment { return c.Replies },
				func(c *Comment, rs []*Comment) { c.Replies = rs }),
		},
	}
}

func ImageConfig() mapping.EntityConfig[Image, int64] {
	return mapping.EntityConfig[Image, int64]{
		TypeName:  ImageType,
		TableName: "images",
		ToValues: func(i *Image) (store.Values, error) {
			return store.Values{"url": i.URL, "width": int64(i.Width)}, nil
		},
		FromValues: func(vs store.Values, i *Image) (err error) {
			if i.URL, err = store.ValueOf[string](vs, "url"); err != nil {
				return err
			}
			i.Width, err = store.ValueOf[int](vs, "width")
			return err
		},
	}
}

func VideoConfig() mapping.EntityConfig[Video, int64] {
	return mapping.EntityConfig[Video, int64]{
		TypeName:  VideoType,
		TableName: "videos",
		ToValues: func(v *Video) (store.Values, error) {
			return store.Values{"url": v.URL, "seconds": int64(v.Seconds)}, nil
		},
		FromValues: func(vs store.Values, v *Video) (err error) {
			if v.URL, err = store.ValueOf[string](vs, "url"); err != nil {
				return err
			}
			v.Seconds, err = store.ValueOf[int](vs, "seconds")
			return err
		},
	}
}
