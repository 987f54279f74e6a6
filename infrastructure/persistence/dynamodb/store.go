// Package dynamodb implements the persistence ports on a single DynamoDB
// table. Key layout:
//
//	BOARD#<boardID> / META              board metadata
//	BOARD#<boardID> / MEMBER#<userID>   membership (GSI1: USER#<userID> -> BOARD#<boardID>)
//	BOARD#<boardID> / ELEMENT#<id>      element
package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"boardsync-backend/application/ports"
	"boardsync-backend/domain/board"
	apperrors "boardsync-backend/pkg/errors"
)

const (
	skMeta          = "META"
	memberSKPrefix  = "MEMBER#"
	elementSKPrefix = "ELEMENT#"
	boardPKPrefix   = "BOARD#"
	userGSIPrefix   = "USER#"

	gsi1Name = "GSI1"

	batchWriteChunk = 25
)

// Store implements ports.Store on DynamoDB.
type Store struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// Compile-time interface check
var _ ports.Store = (*Store)(nil)

// NewStore creates a DynamoDB-backed store.
func NewStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// ddbBoard is the shape of a board metadata item.
type ddbBoard struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	BoardID   string `dynamodbav:"BoardID"`
	Name      string `dynamodbav:"Name"`
	OwnerID   string `dynamodbav:"OwnerID"`
	CreatedAt string `dynamodbav:"CreatedAt"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// ddbMember is the shape of a membership item.
type ddbMember struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	GSI1PK  string `dynamodbav:"GSI1PK"`
	GSI1SK  string `dynamodbav:"GSI1SK"`
	BoardID string `dynamodbav:"BoardID"`
	UserID  string `dynamodbav:"UserID"`
}

// ddbElement is the shape of an element item. Content, position and style
// are stored as raw JSON strings: the core relays them verbatim.
type ddbElement struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	ElementID string `dynamodbav:"ElementID"`
	BoardID   string `dynamodbav:"BoardID"`
	Type      string `dynamodbav:"Type"`
	Content   string `dynamodbav:"Content,omitempty"`
	Position  string `dynamodbav:"Position,omitempty"`
	Style     string `dynamodbav:"Style,omitempty"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

func boardPK(boardID string) string  { return boardPKPrefix + boardID }
func memberSK(userID string) string  { return memberSKPrefix + userID }
func elementSK(id string) string     { return elementSKPrefix + id }
func userGSIPK(userID string) string { return userGSIPrefix + userID }

// CreateBoard writes the board metadata and the owner membership in one
// transaction so a board can never exist without its owner as a member.
func (s *Store) CreateBoard(ctx context.Context, b board.Board) error {
	boardItem, err := attributevalue.MarshalMap(ddbBoard{
		PK:        boardPK(b.ID),
		SK:        skMeta,
		BoardID:   b.ID,
		Name:      b.Name,
		OwnerID:   b.OwnerID,
		CreatedAt: b.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: b.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return apperrors.NewStorage("failed to marshal board", err)
	}

	memberItem, err := attributevalue.MarshalMap(ddbMember{
		PK:      boardPK(b.ID),
		SK:      memberSK(b.OwnerID),
		GSI1PK:  userGSIPK(b.OwnerID),
		GSI1SK:  boardPK(b.ID),
		BoardID: b.ID,
		UserID:  b.OwnerID,
	})
	if err != nil {
		return apperrors.NewStorage("failed to marshal membership", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(s.tableName),
					Item:                boardItem,
					ConditionExpression: aws.String("attribute_not_exists(PK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(s.tableName),
					Item:      memberItem,
				},
			},
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for _, reason := range canceled.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return apperrors.NewConflict("board already exists: " + b.ID)
				}
			}
		}
		return apperrors.NewStorage("failed to create board", err)
	}
	return nil
}

// GetBoard fetches a board's metadata item.
func (s *Store) GetBoard(ctx context.Context, boardID string) (board.Board, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: boardPK(boardID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return board.Board{}, apperrors.NewStorage("failed to get board", err)
	}
	if out.Item == nil {
		return board.Board{}, apperrors.NewNotFound("board not found: " + boardID)
	}

	var item ddbBoard
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return board.Board{}, apperrors.NewStorage("failed to unmarshal board", err)
	}
	return item.toBoard(), nil
}

func (item ddbBoard) toBoard() board.Board {
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	return board.Board{
		ID:        item.BoardID,
		Name:      item.Name,
		OwnerID:   item.OwnerID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// ListBoardsByUser queries memberships through GSI1 and resolves each
// board's metadata.
func (s *Store) ListBoardsByUser(ctx context.Context, userID string) ([]board.Board, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(userGSIPK(userID))).
		And(expression.Key("GSI1SK").BeginsWith(boardPKPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, apperrors.NewStorage("failed to build membership query", err)
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(gsi1Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, apperrors.NewStorage("failed to query memberships", err)
	}

	boards := make([]board.Board, 0, len(out.Items))
	for _, raw := range out.Items {
		var member ddbMember
		if err := attributevalue.UnmarshalMap(raw, &member); err != nil {
			return nil, apperrors.NewStorage("failed to unmarshal membership", err)
		}
		b, err := s.GetBoard(ctx, member.BoardID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				// Membership pointing at a deleted board; skip.
				continue
			}
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, nil
}

// DeleteBoard removes the board partition: metadata, memberships and
// elements.
func (s *Store) DeleteBoard(ctx context.Context, boardID string) error {
	keyCond := expression.Key("PK").Equal(expression.Value(boardPK(boardID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return apperrors.NewStorage("failed to build board query", err)
	}

	var writes []types.WriteRequest
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ProjectionExpression:      aws.String("PK, SK"),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return apperrors.NewStorage("failed to query board items", err)
		}
		for _, item := range out.Items {
			writes = append(writes, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: item},
			})
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	if len(writes) == 0 {
		return apperrors.NewNotFound("board not found: " + boardID)
	}

	for start := 0; start < len(writes); start += batchWriteChunk {
		end := start + batchWriteChunk
		if end > len(writes) {
			end = len(writes)
		}
		_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.tableName: writes[start:end],
			},
		})
		if err != nil {
			return apperrors.NewStorage("failed to delete board items", err)
		}
	}

	s.logger.Info("Board deleted",
		zap.String("boardID", boardID),
		zap.Int("items", len(writes)),
	)
	return nil
}

// IsMember checks for a membership item.
func (s *Store) IsMember(ctx context.Context, boardID, userID string) (bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: boardPK(boardID)},
			"SK": &types.AttributeValueMemberS{Value: memberSK(userID)},
		},
	})
	if err != nil {
		return false, apperrors.NewStorage("failed to check membership", err)
	}
	return out.Item != nil, nil
}

// AddMember writes a membership item.
func (s *Store) AddMember(ctx context.Context, boardID, userID string) error {
	item, err := attributevalue.MarshalMap(ddbMember{
		PK:      boardPK(boardID),
		SK:      memberSK(userID),
		GSI1PK:  userGSIPK(userID),
		GSI1SK:  boardPK(boardID),
		BoardID: boardID,
		UserID:  userID,
	})
	if err != nil {
		return apperrors.NewStorage("failed to marshal membership", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return apperrors.NewStorage("failed to add member", err)
	}
	return nil
}

// RemoveMember deletes a membership item.
func (s *Store) RemoveMember(ctx context.Context, boardID, userID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: boardPK(boardID)},
			"SK": &types.AttributeValueMemberS{Value: memberSK(userID)},
		},
	})
	if err != nil {
		return apperrors.NewStorage("failed to remove member", err)
	}
	return nil
}

// ListElements queries the element range of a board partition.
func (s *Store) ListElements(ctx context.Context, boardID string) ([]board.Element, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(boardPK(boardID))).
		And(expression.Key("SK").BeginsWith(elementSKPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, apperrors.NewStorage("failed to build element query", err)
	}

	var elements []board.Element
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, apperrors.NewStorage("failed to query elements", err)
		}
		for _, raw := range out.Items {
			var item ddbElement
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, apperrors.NewStorage("failed to unmarshal element", err)
			}
			elements = append(elements, item.toElement())
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return elements, nil
}

func (item ddbElement) toElement() board.Element {
	updatedAt, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	el := board.Element{
		ID:        item.ElementID,
		BoardID:   item.BoardID,
		Type:      board.ElementType(item.Type),
		UpdatedAt: updatedAt,
	}
	if item.Content != "" {
		el.Content = json.RawMessage(item.Content)
	}
	if item.Position != "" {
		el.Position = json.RawMessage(item.Position)
	}
	if item.Style != "" {
		el.Style = json.RawMessage(item.Style)
	}
	return el
}

// InsertElement stores a new element item.
func (s *Store) InsertElement(ctx context.Context, el board.Element) error {
	item, err := attributevalue.MarshalMap(ddbElement{
		PK:        boardPK(el.BoardID),
		SK:        elementSK(el.ID),
		ElementID: el.ID,
		BoardID:   el.BoardID,
		Type:      string(el.Type),
		Content:   string(el.Content),
		Position:  string(el.Position),
		Style:     string(el.Style),
		UpdatedAt: el.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return apperrors.NewStorage("failed to marshal element", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return apperrors.NewStorage("failed to insert element", err)
	}
	return nil
}

// UpdateElement updates the provided fields and returns the element as
// stored. Last write wins; concurrent updates race at this layer by
// design.
func (s *Store) UpdateElement(ctx context.Context, patch board.ElementPatch) (board.Element, error) {
	update := expression.Set(
		expression.Name("UpdatedAt"),
		expression.Value(time.Now().UTC().Format(time.RFC3339Nano)),
	)
	if patch.Content != nil {
		update = update.Set(expression.Name("Content"), expression.Value(string(patch.Content)))
	}
	if patch.Position != nil {
		update = update.Set(expression.Name("Position"), expression.Value(string(patch.Position)))
	}
	if patch.Style != nil {
		update = update.Set(expression.Name("Style"), expression.Value(string(patch.Style)))
	}

	cond := expression.Name("SK").AttributeExists()
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return board.Element{}, apperrors.NewStorage("failed to build update expression", err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: boardPK(patch.BoardID)},
			"SK": &types.AttributeValueMemberS{Value: elementSK(patch.ID)},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return board.Element{}, apperrors.NewNotFound("element not found: " + patch.ID)
		}
		return board.Element{}, apperrors.NewStorage("failed to update element", err)
	}

	var item ddbElement
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return board.Element{}, apperrors.NewStorage("failed to unmarshal updated element", err)
	}
	return item.toElement(), nil
}

// DeleteElement removes an element item. Deleting an absent element is not
// an error.
func (s *Store) DeleteElement(ctx context.Context, boardID, elementID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: boardPK(boardID)},
			"SK": &types.AttributeValueMemberS{Value: elementSK(elementID)},
		},
	})
	if err != nil {
		return apperrors.NewStorage("failed to delete element", err)
	}
	return nil
}
