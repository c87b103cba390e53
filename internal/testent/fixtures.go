package testent

import (
	"fmt"

	"github.com/Pallinder/go-randomdata"
)

func MakeAuthor() *Author {
	return &Author{Name: randomdata.FullName(randomdata.RandomGender)}
}

func MakeComment() *Comment {
	return &Comment{Body: randomdata.Paragraph()}
}

func MakeImage() *Image {
	return &Image{
		URL:   fmt.Sprintf("https://%s/%s.png", randomdata.IpV4Address(), randomdata.SillyName()),
		Width: randomdata.Number(64, 4096),
	}
}

func MakeVideo() *Video {
	return &Video{
		URL:     fmt.Sprintf("https://%s/%s.mp4", randomdata.IpV4Address(), randomdata.SillyName()),
		Seconds: randomdata.Number(1, 3600),
	}
}

// MakePost builds an unsaved post with the full aggregate shape:
// top level comments with back references and a reply,
// a cover image and attachments of both media types.
func MakePost(author *Author) *Post {
	p := &Post{
		Title:  randomdata.Noun() + " " + randomdata.Adjective(),
		Author: author,
		Cover:  MakeImage(),
	}
	c1, c2 := MakeComment(), MakeComment()
	c1.Post, c2.Post = p, p
	c1.Replies = []*Comment{MakeComment()}
	p.Comments = []*Comment{c1, c2}
	p.Attachments = []Media{MakeImage(), MakeVideo()}
	return p
}
